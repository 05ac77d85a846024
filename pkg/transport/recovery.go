package transport

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/watchtracker/pkg/api"
)

// Recovery returns middleware that turns a panic inside an operation into
// a server_error. The panic and its stack are logged with the operation and
// namespace so the failing request can be found; the server keeps serving.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, call *Call) (retErr error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				slog.ErrorContext(ctx, "operation panicked",
					"request_id", RequestIDFromContext(ctx),
					"operation", string(call.Operation),
					"service", call.Service,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				retErr = api.NewServerError(msgServerError)
			}()
			return next.Handle(ctx, call)
		})
	}
}
