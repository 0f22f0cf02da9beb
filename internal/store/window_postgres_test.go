package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/window-limiter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// unreachablePostgres returns a pool that connects lazily to a closed port.
func unreachablePostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), "postgres://limiter@127.0.0.1:1/limiter?connect_timeout=1")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestWindowPostgresStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	s := store.NewWindowPostgresStore(unreachablePostgres(t))

	_, _, err := s.Query(ctx, "a")
	requireBackendDown(t, err)

	_, err = s.TryConsume(ctx, "a")
	requireBackendDown(t, err)

	err = s.Create(ctx, "a", 1, time.Now().Add(time.Minute))
	requireBackendDown(t, err)

	_, err = s.Remove(ctx, "a")
	requireBackendDown(t, err)

	_, err = s.Sweep(ctx)
	requireBackendDown(t, err)

	requireBackendDown(t, s.Ping(ctx))
}

func TestWindowPostgresStore_Janitor(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := store.NewWindowPostgresStore(unreachablePostgres(t), store.WithPostgresLogger(zap.New(core)))

	require.NoError(t, s.Shutdown(), "shutdown without janitor is a no-op")

	s.StartJanitor(0)
	s.StartJanitor(10 * time.Millisecond)

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("window sweep failed").Len() > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown(), "shutdown is idempotent")
}
