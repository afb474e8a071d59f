package idempotency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/mutrapro/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:idem_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewStore(Params{DB: conn, Log: zap.NewNop(), Clock: clk}), clk
}

type storedPayment struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func TestBeginCompleteReplay(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	record, replay, err := store.Begin(ctx, "payments", "key-1", "fp-a")
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, StatusInProgress, record.Status)

	require.NoError(t, store.Complete(ctx, "payments", "key-1", storedPayment{ID: 9, Status: "completed"}))

	record, replay, err = store.Begin(ctx, "payments", "key-1", "fp-a")
	require.NoError(t, err)
	assert.True(t, replay)

	var out storedPayment
	require.NoError(t, record.Decode(&out))
	assert.Equal(t, int64(9), out.ID)
	assert.Equal(t, "completed", out.Status)
}

func TestBeginRejectsMismatchAndInFlight(t *testing.T) {
	store, clk := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "payments", "key-2", "fp-a")
	require.NoError(t, err)

	_, _, err = store.Begin(ctx, "payments", "key-2", "fp-b")
	assert.ErrorIs(t, err, ErrKeyMismatch)

	_, _, err = store.Begin(ctx, "payments", "key-2", "fp-a")
	assert.ErrorIs(t, err, ErrInFlight)

	clk.Advance(3 * time.Minute)
	record, replay, err := store.Begin(ctx, "payments", "key-2", "fp-a")
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, StatusInProgress, record.Status)
}

func TestReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "payments", "key-3", "fp-a")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "payments", "key-3"))

	_, replay, err := store.Begin(ctx, "payments", "key-3", "fp-b")
	require.NoError(t, err)
	assert.False(t, replay)
}

func TestUnknownOutcomeBlocksRetryUntilMaxAge(t *testing.T) {
	store, clk := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Begin(ctx, "payments", "key-4", "fp-a")
	require.NoError(t, err)
	require.NoError(t, store.MarkUnknown(ctx, "payments", "key-4"))

	// past the in-flight lease the key is still pinned
	clk.Advance(time.Hour)
	_, _, err = store.Begin(ctx, "payments", "key-4", "fp-a")
	assert.ErrorIs(t, err, ErrOutcomeUnknown)

	// release only forgets in-progress keys
	require.NoError(t, store.Release(ctx, "payments", "key-4"))
	_, _, err = store.Begin(ctx, "payments", "key-4", "fp-a")
	assert.ErrorIs(t, err, ErrOutcomeUnknown)

	_, _, err = store.Begin(ctx, "payments", "key-4", "fp-b")
	assert.ErrorIs(t, err, ErrKeyMismatch)

	clk.Advance(24 * time.Hour)
	record, replay, err := store.Begin(ctx, "payments", "key-4", "fp-a")
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, StatusInProgress, record.Status)
}

func TestBeginValidatesKey(t *testing.T) {
	store, _ := newTestStore(t)
	_, _, err := store.Begin(context.Background(), "payments", "   ", "fp")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFingerprintIsStable(t *testing.T) {
	a, err := Fingerprint(map[string]any{"amount": "10.00", "method": "card"})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]any{"method": "card", "amount": "10.00"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
