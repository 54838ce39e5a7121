// Package serve implements "dawnwire serve".
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/broady/dawnwire/cmd/dawnwire/internal/gen"
	"github.com/broady/dawnwire/devtools"
)

// Prefix is where devtools endpoints are mounted.
const Prefix = "/__dawnwire"

type Cmd struct {
	gen.Inputs `embed:""`

	Host string `help:"Host to listen on." default:"localhost"`
	Port int    `help:"Port to listen on." default:"9000" short:"p"`
}

func (c *Cmd) Run(logger *slog.Logger, version Version) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	schema, err := c.Generator(logger).Build(ctx)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", c.Host, c.Port),
		Handler:           Mux(devtools.New(schema, c.Port).WithLogger(logger).WithVersion(string(version))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", slog.Any("error", err))
		}
	}()

	fmt.Printf("dawnwire devtools listening on http://%s%s/\n", srv.Addr, Prefix)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Version is the CLI version bound into Run.
type Version string

// Mux mounts svc under Prefix.
func Mux(svc *devtools.Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(Prefix+"/", http.StripPrefix(Prefix, svc.Handler()))
	return mux
}
