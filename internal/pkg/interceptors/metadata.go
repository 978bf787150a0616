// Package interceptors carries request metadata across process boundaries.
//
// HTTP middleware stores the request id and idempotency key in the context;
// TracePublisher copies them, together with the W3C trace context, into
// broker message headers; TraceConsumer restores them on the other side.
package interceptors

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	idempotencyKeyKey
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyKey, key)
}

// RequestID returns the request id stored in ctx, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// IdempotencyKey returns the idempotency key stored in ctx, or "" when absent.
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyKey).(string)
	return key
}
