package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/broady/dawnwire/cmd/dawnwire/internal/check"
	"github.com/broady/dawnwire/cmd/dawnwire/internal/diff"
	"github.com/broady/dawnwire/cmd/dawnwire/internal/gen"
	"github.com/broady/dawnwire/cmd/dawnwire/internal/serve"
)

type CLI struct {
	LogLevel string `help:"Log level." name:"log-level" default:"info" enum:"debug,info,warn,error" env:"DAWNWIRE_LOG_LEVEL"`

	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate the wire schema from API and wire descriptions."`
	Check   check.Cmd  `cmd:"" help:"Fail if the checked-in wire schema is out of date."`
	Diff    diff.Cmd   `cmd:"" help:"Print the JSON patch between two schema dumps."`
	Serve   serve.Cmd  `cmd:"" help:"Serve devtools endpoints over a built schema."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

// newLogger returns a text logger on stderr at the named level.
func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("dawnwire"),
		kong.Description("Wire command schema generator and inspection tools."),
		kong.UsageOnError(),
	)
	logger, err := newLogger(cli.LogLevel)
	ctx.FatalIfErrorf(err)
	err = ctx.Run(logger, serve.Version(Version()))
	ctx.FatalIfErrorf(err)
}
