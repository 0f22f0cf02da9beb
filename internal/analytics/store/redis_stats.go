package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/window-limiter/internal/analytics"
)

const (
	defaultStatsPrefix = "ratelimit:stats"
	defaultStatsTTL    = 24 * time.Hour
)

// Counts is the number of admitted and rejected decisions recorded for a scope.
type Counts struct {
	Admitted int64
	Rejected int64
}

// RedisStats aggregates decision events into Redis hashes: a cumulative total,
// per-minute buckets and per-key counters. Bucket and key hashes expire after ttl.
type RedisStats struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisStatsOption configures a RedisStats.
type RedisStatsOption func(*RedisStats)

// WithStatsPrefix sets the key namespace.
func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStats) { s.prefix = strings.Trim(prefix, ":") }
}

// WithStatsTTL sets how long bucket and key hashes are kept.
func WithStatsTTL(ttl time.Duration) RedisStatsOption {
	return func(s *RedisStats) { s.ttl = ttl }
}

// NewRedisStats creates a new Redis-backed analytics store.
func NewRedisStats(client *redis.Client, opts ...RedisStatsOption) *RedisStats {
	s := &RedisStats{
		client: client,
		prefix: defaultStatsPrefix,
		ttl:    defaultStatsTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RedisStats) SaveDecision(ctx context.Context, event *analytics.DecisionEvent) error {
	at := event.DecidedAt
	if at.IsZero() {
		at = time.Now()
	}

	field := string(event.Outcome)

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)

	bucketKey := s.bucketKey(at)
	pipe.HIncrBy(ctx, bucketKey, field, 1)

	if event.Key != "" {
		keyKey := s.keyKey(event.Key)
		pipe.HIncrBy(ctx, keyKey, field, 1)

		if s.ttl > 0 {
			pipe.Expire(ctx, keyKey, s.ttl)
		}
	}

	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	_, err := pipe.Exec(ctx)

	return err
}

// Total returns the cumulative counts across all keys.
func (s *RedisStats) Total(ctx context.Context) (Counts, error) {
	return s.counts(ctx, s.totalKey())
}

// ForKey returns the counts recorded for a client key within the retention ttl.
func (s *RedisStats) ForKey(ctx context.Context, key string) (Counts, error) {
	return s.counts(ctx, s.keyKey(key))
}

func (s *RedisStats) counts(ctx context.Context, hash string) (Counts, error) {
	values, err := s.client.HGetAll(ctx, hash).Result()
	if err != nil {
		return Counts{}, err
	}

	var c Counts

	if v, ok := values[string(analytics.OutcomeAdmitted)]; ok {
		c.Admitted, _ = strconv.ParseInt(v, 10, 64)
	}

	if v, ok := values[string(analytics.OutcomeRejected)]; ok {
		c.Rejected, _ = strconv.ParseInt(v, 10, 64)
	}

	return c, nil
}

func (s *RedisStats) totalKey() string { return s.prefix + ":total" }

func (s *RedisStats) bucketKey(at time.Time) string {
	return s.prefix + ":minute:" + at.UTC().Format("200601021504")
}

func (s *RedisStats) keyKey(key string) string { return s.prefix + ":key:" + key }

var _ analytics.Store = (*RedisStats)(nil)
