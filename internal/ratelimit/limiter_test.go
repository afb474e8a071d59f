package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentLimiterWithoutRedisAllowsEverything(t *testing.T) {
	limiter, err := NewPaymentLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowCustomer(context.Background(), "12")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	token, ok, err := limiter.TryLockRequest(context.Background(), 7, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, limiter.ReleaseRequest(context.Background(), 7, token))
}

func TestNilLimiterIsSafe(t *testing.T) {
	var limiter *PaymentLimiter
	res, err := limiter.AllowCustomer(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, ok, err := limiter.TryLockRequest(context.Background(), 7, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)

	assert.Nil(t, NewTokenBucket(nil))
	assert.Nil(t, NewRequestLeases(nil))
}

func TestRequestLeaseKey(t *testing.T) {
	assert.Equal(t, "mutrapro:reconcile:request:42", requestLeaseKey(42))
}

func TestRequestLeasesValidateInput(t *testing.T) {
	var missing *RequestLeases
	_, ok, err := missing.Acquire(context.Background(), 7, time.Second)
	assert.ErrorIs(t, err, errLeaseStoreMissing)
	assert.False(t, ok)
	assert.NoError(t, missing.Release(context.Background(), Lease{RequestID: 7, Token: "t"}))

	leases := &RequestLeases{client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})}
	_, _, err = leases.Acquire(context.Background(), 0, time.Second)
	assert.ErrorIs(t, err, errLeaseRequest)
	_, _, err = leases.Acquire(context.Background(), 7, 0)
	assert.ErrorIs(t, err, errLeaseTTL)
	assert.NoError(t, leases.Release(context.Background(), Lease{RequestID: 7}))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestScriptValueConversion(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(0), toInt(nil))
	assert.InDelta(t, 2.5, toFloat("2.5"), 0.0001)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 0.0001)
}
