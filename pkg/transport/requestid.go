package transport

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request ID carried by ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID attaches id to ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns middleware that makes sure every call carries a
// request ID. The HTTP adapter normally sets one from X-Request-ID (or
// generates it); calls that arrive without one get a fresh UUID here.
func RequestID() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, call *Call) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.Handle(ctx, call)
		})
	}
}

// NewRequestID creates a new unique request ID.
func NewRequestID() string {
	return uuid.NewString()
}
