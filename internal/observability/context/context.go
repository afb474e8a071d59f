package context

import (
	stdctx "context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	customerIDKey
	idempotencyKeyKey
)

func WithRequestID(ctx stdctx.Context, requestID string) stdctx.Context {
	return stdctx.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx stdctx.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithCustomerID(ctx stdctx.Context, customerID string) stdctx.Context {
	return stdctx.WithValue(ctx, customerIDKey, strings.TrimSpace(customerID))
}

func CustomerIDFromContext(ctx stdctx.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(customerIDKey).(string)
	return value
}

// WithIdempotencyKey carries the caller supplied Idempotency-Key so the
// record store client can forward it on create calls.
func WithIdempotencyKey(ctx stdctx.Context, key string) stdctx.Context {
	return stdctx.WithValue(ctx, idempotencyKeyKey, strings.TrimSpace(key))
}

func IdempotencyKeyFromContext(ctx stdctx.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(idempotencyKeyKey).(string)
	return value
}
