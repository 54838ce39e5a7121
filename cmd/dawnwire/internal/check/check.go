// Package check implements "dawnwire check".
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/broady/dawnwire/cmd/dawnwire/internal/diff"
	"github.com/broady/dawnwire/cmd/dawnwire/internal/gen"
	"github.com/broady/dawnwire/wiregen/sink"
)

type Cmd struct {
	gen.Inputs `embed:""`

	Out        string `arg:"" help:"Directory holding the checked-in schema."`
	SchemaFile string `help:"Schema file name." default:"wire_schema.json" name:"schema-file"`
	Quiet      bool   `help:"Do not print the patch of stale files." short:"q"`
}

func (c *Cmd) Run(logger *slog.Logger) error {
	ctx := context.Background()
	g := c.Generator(logger).SchemaFile(c.SchemaFile)

	checker := sink.NewCheckSink(c.Out)
	result, err := g.ToSink(ctx, checker)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	stale := checker.Stale()
	if len(stale) == 0 {
		fmt.Printf("✓ %s is up to date (%d commands, %d return commands)\n",
			c.SchemaFile, len(result.Schema.Commands), len(result.Schema.ReturnCommands))
		return nil
	}
	if c.Quiet {
		return checker.Err()
	}

	// Render again in memory to show what changed.
	_, mem, err := g.Generate(ctx)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	for _, path := range stale {
		onDisk, err := os.ReadFile(filepath.Join(c.Out, filepath.FromSlash(path)))
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("✗ %s is missing\n", path)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		fmt.Printf("✗ %s is stale\n", path)
		if _, err := diff.Print(os.Stdout, onDisk, mem.Get(path)); err != nil {
			return err
		}
	}
	return checker.Err()
}
