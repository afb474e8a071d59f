package context

import (
	stdctx "context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(stdctx.Background(), "  req-1 ")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestIDFromContext(stdctx.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestIdempotencyKeyRoundTrip(t *testing.T) {
	ctx := WithIdempotencyKey(stdctx.Background(), "key-9")
	if got := IdempotencyKeyFromContext(ctx); got != "key-9" {
		t.Fatalf("expected key-9, got %q", got)
	}
}
