package ctxkeys

import (
	"context"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	OriginKey    contextKey = "origin"
	RequestIDKey contextKey = "request_id"
)

// Origin returns the resolved, allow-listed caller origin, or "" when the
// request carried none that resolved.
func Origin(ctx context.Context) string {
	origin, _ := ctx.Value(OriginKey).(string)
	return origin
}

func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, OriginKey, origin)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
