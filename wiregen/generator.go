// Package wiregen derives a wire command schema from an API description and
// a wire description.
//
// The pipeline runs as strict phases: link, synthesize, analyze, assemble.
// Each phase completes before the next starts; any fatal error aborts the
// whole pass and no schema is produced.
package wiregen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/broady/dawnwire/wiregen/ir"
	"github.com/broady/dawnwire/wiregen/load"
	"github.com/broady/dawnwire/wiregen/sink"
)

// Config holds the configuration for schema generation.
type Config struct {
	// APIPath is the API description file (.json, .yaml or .yml).
	APIPath string

	// WirePath is the optional wire description file.
	WirePath string

	// OutDir is the directory the schema is written to.
	OutDir string

	// SchemaFile is the output file name inside OutDir.
	// Default: "wire_schema.json"
	SchemaFile string

	// Indent is the JSON indentation of the output.
	// Default: two spaces
	Indent string

	// WarnUnsupported reports methods that cannot become commands.
	WarnUnsupported bool

	// ClientSideCommands are added to the wire description's list.
	ClientSideCommands []string

	// Logger receives phase diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultSchemaFile is the default output file name.
const DefaultSchemaFile = "wire_schema.json"

// GenerateResult describes a completed generation.
type GenerateResult struct {
	Schema *ir.Schema

	// Files lists all files that were written.
	Files []OutputFile

	// Warnings contains non-fatal issues encountered.
	Warnings []ir.Warning
}

// OutputFile describes a generated file.
type OutputFile struct {
	Path string
	Size int
}

// applyConfigDefaults applies default values to Config.
func applyConfigDefaults(cfg *Config) *Config {
	// Make a copy to avoid mutating the input
	result := *cfg

	if result.SchemaFile == "" {
		result.SchemaFile = DefaultSchemaFile
	}
	if result.Indent == "" {
		result.Indent = "  "
	}
	if result.Logger == nil {
		result.Logger = slog.Default()
	}
	return &result
}

// Build links the descriptions and assembles the schema. wire may be nil.
func Build(ctx context.Context, api *load.APIDescription, wire *load.WireDescription, cfg *Config) (*ir.Schema, error) {
	cfg = applyConfigDefaults(cfg)
	log := cfg.Logger

	linked, err := load.Link(api, wire)
	if err != nil {
		return nil, err
	}
	log.Debug("linked descriptions",
		slog.Int("types", linked.Types.Len()),
		slog.Int("structures", len(linked.Structures)),
		slog.Int("declared", len(linked.Declared)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clientSide := make(map[string]bool)
	for _, name := range linked.ClientSideCommands {
		clientSide[name] = true
	}
	for _, name := range cfg.ClientSideCommands {
		clientSide[name] = true
	}
	syn := &Synthesizer{
		Types:           linked.Types,
		ClientSide:      clientSide,
		WarnUnsupported: cfg.WarnUnsupported,
		Logger:          log,
	}
	synthesized, err := syn.Synthesize(linked.Declared)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schema, err := Assemble(linked, synthesized)
	if err != nil {
		return nil, err
	}
	if errs := schema.Validate(); len(errs) > 0 {
		var merr *multierror.Error
		for _, e := range errs {
			merr = multierror.Append(merr, e)
		}
		return nil, &ir.SchemaError{Phase: ir.PhaseAssemble, Err: merr}
	}
	log.Debug("assembled schema",
		slog.Int("commands", len(schema.Commands)),
		slog.Int("return_commands", len(schema.ReturnCommands)),
		slog.Int("warnings", len(schema.Warnings)))
	return schema, nil
}

// Marshal renders schema as indented JSON with a trailing newline. The
// output is byte-for-byte stable for identical input.
func Marshal(schema *ir.Schema, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(schema); err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate reads the descriptions named by cfg, builds the schema and
// writes it to out.
func Generate(ctx context.Context, cfg *Config, out sink.OutputSink) (*GenerateResult, error) {
	if cfg.APIPath == "" {
		return nil, fmt.Errorf("APIPath is required")
	}
	cfg = applyConfigDefaults(cfg)

	api, err := load.ReadAPI(cfg.APIPath)
	if err != nil {
		return nil, err
	}
	var wire *load.WireDescription
	if cfg.WirePath != "" {
		wire, err = load.ReadWire(cfg.WirePath)
		if err != nil {
			return nil, err
		}
	}
	return write(ctx, api, wire, cfg, out)
}

func write(ctx context.Context, api *load.APIDescription, wire *load.WireDescription, cfg *Config, out sink.OutputSink) (*GenerateResult, error) {
	schema, err := Build(ctx, api, wire, cfg)
	if err != nil {
		return nil, err
	}
	data, err := Marshal(schema, cfg.Indent)
	if err != nil {
		return nil, err
	}
	if err := out.WriteFile(ctx, cfg.SchemaFile, data); err != nil {
		return nil, fmt.Errorf("failed to write schema: %w", err)
	}
	cfg.Logger.Info("wrote schema",
		slog.String("path", cfg.SchemaFile),
		slog.Int("bytes", len(data)))

	// Report warnings if any
	for _, w := range schema.Warnings {
		cfg.Logger.Warn(w.Message, slog.String("code", w.Code), slog.String("type", w.TypeName))
	}

	return &GenerateResult{
		Schema:   schema,
		Files:    []OutputFile{{Path: cfg.SchemaFile, Size: len(data)}},
		Warnings: schema.Warnings,
	}, nil
}
