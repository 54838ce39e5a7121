package wiregen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/broady/dawnwire/wiregen/ir"
	"github.com/broady/dawnwire/wiregen/load"
	"github.com/broady/dawnwire/wiregen/sink"
)

// Generator provides a fluent API for schema generation.
// Create with FromFiles() or FromDescriptions() and configure with method chaining.
//
// Example:
//
//	wiregen.FromFiles("dawn.json", "dawn_wire.json").
//	    WarnUnsupported().
//	    ToDir(ctx, "./gen")
type Generator struct {
	api  *load.APIDescription
	wire *load.WireDescription
	cfg  Config
}

// FromFiles creates a Generator reading the given description files.
// wirePath may be empty.
func FromFiles(apiPath, wirePath string) *Generator {
	return &Generator{cfg: Config{APIPath: apiPath, WirePath: wirePath}}
}

// FromDescriptions creates a Generator over already parsed descriptions.
// wire may be nil.
func FromDescriptions(api *load.APIDescription, wire *load.WireDescription) *Generator {
	return &Generator{api: api, wire: wire}
}

// WarnUnsupported records a warning for every method that cannot become a command.
func (g *Generator) WarnUnsupported() *Generator {
	g.cfg.WarnUnsupported = true
	return g
}

// WithLogger sets the logger for phase diagnostics.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.cfg.Logger = logger
	return g
}

// SchemaFile sets the output file name.
func (g *Generator) SchemaFile(name string) *Generator {
	g.cfg.SchemaFile = name
	return g
}

// Indent sets the JSON indentation of the output.
func (g *Generator) Indent(indent string) *Generator {
	g.cfg.Indent = indent
	return g
}

// ClientSideCommands marks UpperCamel command names as handled by the client.
func (g *Generator) ClientSideCommands(names ...string) *Generator {
	g.cfg.ClientSideCommands = append(g.cfg.ClientSideCommands, names...)
	return g
}

func (g *Generator) load() error {
	if g.api != nil {
		return nil
	}
	if g.cfg.APIPath == "" {
		return fmt.Errorf("APIPath is required")
	}
	api, err := load.ReadAPI(g.cfg.APIPath)
	if err != nil {
		return err
	}
	g.api = api
	if g.cfg.WirePath != "" {
		wire, err := load.ReadWire(g.cfg.WirePath)
		if err != nil {
			return err
		}
		g.wire = wire
	}
	return nil
}

// Build returns the schema without rendering it.
func (g *Generator) Build(ctx context.Context) (*ir.Schema, error) {
	if err := g.load(); err != nil {
		return nil, err
	}
	return Build(ctx, g.api, g.wire, &g.cfg)
}

// Generate renders the schema in memory. The returned sink holds the file.
func (g *Generator) Generate(ctx context.Context) (*GenerateResult, *sink.MemorySink, error) {
	out := sink.NewMemorySink()
	result, err := g.ToSink(ctx, out)
	if err != nil {
		return nil, nil, err
	}
	return result, out, nil
}

// ToDir writes the schema into dir.
// This is a terminal operation that writes files to disk.
func (g *Generator) ToDir(ctx context.Context, dir string) (*GenerateResult, error) {
	g.cfg.OutDir = dir
	return g.ToSink(ctx, sink.NewFilesystemSink(dir))
}

// ToSink writes the schema to out.
func (g *Generator) ToSink(ctx context.Context, out sink.OutputSink) (*GenerateResult, error) {
	if err := g.load(); err != nil {
		return nil, err
	}
	return write(ctx, g.api, g.wire, applyConfigDefaults(&g.cfg), out)
}
