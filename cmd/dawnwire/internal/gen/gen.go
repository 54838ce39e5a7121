// Package gen implements "dawnwire gen" and the description flags shared by
// the other subcommands.
package gen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/broady/dawnwire/wiregen"
)

// Inputs names the description files a schema is built from.
type Inputs struct {
	API        string   `help:"API description (dawn.json shape, JSON or YAML)." required:"" type:"existingfile" env:"DAWNWIRE_API"`
	Wire       string   `help:"Wire description with extra commands and return commands." type:"existingfile" env:"DAWNWIRE_WIRE"`
	ClientSide []string `help:"Extra UpperCamel command names handled by the client." name:"client-side"`
	Warn       bool     `help:"Record a warning for every method that cannot become a command." short:"W"`
}

// Generator returns a schema generator over the inputs.
func (in *Inputs) Generator(logger *slog.Logger) *wiregen.Generator {
	g := wiregen.FromFiles(in.API, in.Wire).
		WithLogger(logger).
		ClientSideCommands(in.ClientSide...)
	if in.Warn {
		g = g.WarnUnsupported()
	}
	return g
}

type Cmd struct {
	Inputs `embed:""`

	Out        string `arg:"" help:"Output directory for the schema file."`
	SchemaFile string `help:"Output file name." default:"wire_schema.json" name:"schema-file"`
}

func (c *Cmd) Run(logger *slog.Logger) error {
	result, err := c.Generator(logger).
		SchemaFile(c.SchemaFile).
		ToDir(context.Background(), c.Out)
	if err != nil {
		return fmt.Errorf("gen: %w", err)
	}

	for _, f := range result.Files {
		fmt.Printf("✓ Wrote %s (%d bytes)\n", f.Path, f.Size)
	}
	fmt.Printf("✓ %d commands, %d return commands, %d structures\n",
		len(result.Schema.Commands), len(result.Schema.ReturnCommands), len(result.Schema.Structures))
	if n := len(result.Warnings); n > 0 {
		fmt.Printf("! %d warnings\n", n)
	}
	return nil
}
