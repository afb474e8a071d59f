package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const requestLeasePrefix = "mutrapro:reconcile:request:"

// releaseLeaseScript deletes the lease only while it still carries the
// holder's token, so an expired holder cannot drop a newer lease.
const releaseLeaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	errLeaseStoreMissing = errors.New("request lease store not configured")
	errLeaseRequest      = errors.New("request lease needs a positive service request id")
	errLeaseTTL          = errors.New("request lease ttl must be positive")
)

// Lease is held by one replica while it reconciles a service request.
type Lease struct {
	RequestID int64
	Token     string
}

// RequestLeases hands out reconciliation leases keyed by service request id.
// While a lease is held, no other replica marks the request paid or appends
// its transaction from the outbox. A lease expires on its own after its TTL,
// so a crashed worker never blocks a request for longer than that.
type RequestLeases struct {
	client  redis.UniversalClient
	release *redis.Script
}

// NewRequestLeases returns nil without a redis client.
func NewRequestLeases(client redis.UniversalClient) *RequestLeases {
	if client == nil {
		return nil
	}
	return &RequestLeases{
		client:  client,
		release: redis.NewScript(releaseLeaseScript),
	}
}

func requestLeaseKey(requestID int64) string {
	return requestLeasePrefix + strconv.FormatInt(requestID, 10)
}

// Acquire reports ok=false when another holder still owns the lease.
func (r *RequestLeases) Acquire(ctx context.Context, requestID int64, ttl time.Duration) (Lease, bool, error) {
	switch {
	case r == nil || r.client == nil:
		return Lease{}, false, errLeaseStoreMissing
	case requestID <= 0:
		return Lease{}, false, errLeaseRequest
	case ttl <= 0:
		return Lease{}, false, errLeaseTTL
	}

	lease := Lease{RequestID: requestID, Token: uuid.NewString()}
	ok, err := r.client.SetNX(ctx, requestLeaseKey(requestID), lease.Token, ttl).Result()
	if err != nil {
		return Lease{}, false, err
	}
	if !ok {
		return Lease{}, false, nil
	}
	return lease, true, nil
}

// Release is a no-op for an empty lease or one that has already expired.
func (r *RequestLeases) Release(ctx context.Context, lease Lease) error {
	if r == nil || r.client == nil || lease.Token == "" {
		return nil
	}
	return r.release.Run(ctx, r.client, []string{requestLeaseKey(lease.RequestID)}, lease.Token).Err()
}
