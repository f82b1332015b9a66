// Package trace carries a request ID through context so log lines from one
// request can be grepped together.
package trace

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = 0

// WithRequestID returns a context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// NewRequestID returns a short random ID.
func NewRequestID() string {
	return uuid.NewString()[:8]
}

// Ensure returns ctx unchanged if it already carries an ID, otherwise a child with a fresh one.
func Ensure(ctx context.Context) context.Context {
	if RequestID(ctx) != "" {
		return ctx
	}
	return WithRequestID(ctx, NewRequestID())
}

// Logf logs with the request ID in front. format should start with a level tag like "[INFO]".
func Logf(ctx context.Context, format string, args ...interface{}) {
	id := RequestID(ctx)
	if id == "" {
		id = "-"
	}
	msg := fmt.Sprintf(format, args...)
	_ = log.Output(2, fmt.Sprintf("req=%s %s", id, msg))
}
