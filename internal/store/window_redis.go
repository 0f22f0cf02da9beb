package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/window-limiter/internal/ratelimit"
)

const defaultWindowPrefix = "ratelimit:"

// Reply codes of consumeScript besides a non-negative remaining count.
const (
	consumeNotFound  = -1
	consumeExhausted = -2
	consumeCorrupt   = -3
)

// consumeScript decrements a live counter without ever taking it below zero.
// DECR keeps the key's expiry, so the window end never moves.
var consumeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
    return -1
end

local n = tonumber(v)
if not n then
    return -3
end

if n <= 0 then
    return -2
end

return redis.call('DECR', KEYS[1])
`)

// WindowRedisStore is a Redis implementation of ratelimit.Store.
// Each client key maps to a string counter whose Redis expiry is the window end.
type WindowRedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// WindowRedisOption configures a WindowRedisStore.
type WindowRedisOption func(*WindowRedisStore)

// WithRedisPrefix sets the namespace prepended to every client key.
func WithRedisPrefix(prefix string) WindowRedisOption {
	return func(s *WindowRedisStore) { s.prefix = prefix }
}

// WithRedisClock sets the time source used to turn expiries into TTLs.
func WithRedisClock(now func() time.Time) WindowRedisOption {
	return func(s *WindowRedisStore) { s.now = now }
}

// NewWindowRedisStore creates a new Redis-backed window store.
func NewWindowRedisStore(client *redis.Client, opts ...WindowRedisOption) *WindowRedisStore {
	s := &WindowRedisStore{
		client: client,
		prefix: defaultWindowPrefix,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *WindowRedisStore) key(key ratelimit.ClientKey) string {
	return s.prefix + string(key)
}

func (s *WindowRedisStore) Query(ctx context.Context, key ratelimit.ClientKey) (int64, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, classify("query", err)
	}

	remaining, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, protocolError("query", "counter %q is not an integer", raw)
	}

	return remaining, true, nil
}

func (s *WindowRedisStore) TryConsume(ctx context.Context, key ratelimit.ClientKey) (ratelimit.ConsumeResult, error) {
	reply, err := consumeScript.Run(ctx, s.client, []string{s.key(key)}).Int64()
	if err != nil {
		return ratelimit.ConsumeResult{}, classify("consume", err)
	}

	switch {
	case reply >= 0:
		return ratelimit.ConsumeResult{Outcome: ratelimit.Admitted, Remaining: reply}, nil
	case reply == consumeExhausted:
		return ratelimit.ConsumeResult{Outcome: ratelimit.Exhausted}, nil
	case reply == consumeNotFound:
		return ratelimit.ConsumeResult{Outcome: ratelimit.NotFound}, nil
	case reply == consumeCorrupt:
		return ratelimit.ConsumeResult{}, protocolError("consume", "counter for %q is not an integer", key)
	default:
		return ratelimit.ConsumeResult{}, protocolError("consume", "unexpected reply %d", reply)
	}
}

func (s *WindowRedisStore) Create(
	ctx context.Context, key ratelimit.ClientKey, remaining int64, expiry time.Time,
) error {
	ttl := expiry.Sub(s.now())
	if ttl <= 0 {
		// Already over; storing it would be indistinguishable from absence.
		return nil
	}

	err := s.client.SetArgs(ctx, s.key(key), remaining, redis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return ratelimit.ErrEntryExists
	}

	return classify("create", err)
}

func (s *WindowRedisStore) TimeToLive(
	ctx context.Context, key ratelimit.ClientKey, fallback time.Duration,
) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, classify("ttl", err)
	}

	// Redis answers -2 for a missing key and -1 for a key without expiry.
	if ttl <= 0 {
		return fallback, nil
	}

	return ttl, nil
}

func (s *WindowRedisStore) Remove(ctx context.Context, key ratelimit.ClientKey) (int64, error) {
	raw, err := s.client.GetDel(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	if err != nil {
		return 0, classify("remove", err)
	}

	remaining, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, protocolError("remove", "counter %q is not an integer", raw)
	}

	return remaining, nil
}

// Ping checks that Redis is reachable.
func (s *WindowRedisStore) Ping(ctx context.Context) error {
	return classify("ping", s.client.Ping(ctx).Err())
}

// Shutdown is a no-op for WindowRedisStore (client managed externally).
func (s *WindowRedisStore) Shutdown() error {
	return nil
}

// Compile-time check.
var _ ratelimit.Store = (*WindowRedisStore)(nil)
