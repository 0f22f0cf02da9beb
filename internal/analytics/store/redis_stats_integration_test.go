//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/window-limiter/internal/analytics"
	"github.com/serroba/window-limiter/internal/analytics/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

func TestRedisStatsIntegration(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: getRedisAddr(),
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	prefix := "ratelimit-test:stats"
	s := store.NewRedisStats(client, store.WithStatsPrefix(prefix+":"), store.WithStatsTTL(time.Minute))

	defer func() {
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	}()

	at := time.Now()

	for _, outcome := range []analytics.Outcome{
		analytics.OutcomeAdmitted, analytics.OutcomeAdmitted, analytics.OutcomeRejected,
	} {
		require.NoError(t, s.SaveDecision(ctx, &analytics.DecisionEvent{
			Key:       "10.0.0.1",
			Outcome:   outcome,
			DecidedAt: at,
		}))
	}

	total, err := s.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Admitted: 2, Rejected: 1}, total)

	perKey, err := s.ForKey(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Admitted: 2, Rejected: 1}, perKey)

	ttl, err := client.TTL(ctx, prefix+":key:10.0.0.1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	missing, err := s.ForKey(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, store.Counts{}, missing)
}
