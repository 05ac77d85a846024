package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/watchtracker/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// operation call with the request ID, operation, namespace, duration, and
// outcome. Rejected input is logged at WARN, every other failure at ERROR.
//
// HTTP method, path, and status are not visible at this level; the metrics
// middleware in pkg/observability records those.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, call *Call) error {
			start := time.Now()
			err := next.Handle(ctx, call)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("operation", string(call.Operation)),
				slog.Duration("duration", time.Since(start)),
			}
			if call.Service != "" {
				attrs = append(attrs, slog.String("service", call.Service))
			}

			switch {
			case err == nil:
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			case APIErrorFrom(err).Type == api.ErrorTypeInvalidRequest:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelWarn, "request rejected", attrs...)
			default:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
			}
			return err
		})
	}
}
