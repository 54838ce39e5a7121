// Package middleware provides interceptors for the dawnwire server dispatch loop.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/broady/dawnwire"
)

// Logging creates an interceptor that logs dispatched commands using slog.
// It logs the start and end of each command, including duration and error status.
func Logging(logger *slog.Logger) dawnwire.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, call *dawnwire.Call, next dawnwire.HandlerFunc) (any, error) {
		start := time.Now()

		logger.InfoContext(ctx, "command started",
			slog.String("command", call.Name()),
		)

		res, err := next(ctx, call)
		duration := time.Since(start)

		if err != nil {
			attrs := []any{
				slog.String("command", call.Name()),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			}
			if code := dawnwire.CodeOf(err); code != "" {
				attrs = append(attrs, slog.String("code", string(code)))
			}
			logger.ErrorContext(ctx, "command failed", attrs...)
		} else {
			logger.InfoContext(ctx, "command completed",
				slog.String("command", call.Name()),
				slog.Duration("duration", duration),
			)
		}

		return res, err
	}
}
