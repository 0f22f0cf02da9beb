package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/window-limiter/internal/ratelimit"
	"go.uber.org/zap"
)

const windowSchema = `
	CREATE TABLE IF NOT EXISTS rate_windows (
		key        TEXT PRIMARY KEY,
		remaining  BIGINT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS rate_windows_expires_at_idx ON rate_windows (expires_at);
`

// WindowPostgresStore is a PostgreSQL implementation of ratelimit.Store.
//
// Rows are never trusted past expires_at; every statement filters on it, and
// Sweep deletes what is left behind.
type WindowPostgresStore struct {
	pool   *pgxpool.Pool
	now    func() time.Time
	logger *zap.Logger

	janitorMu sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// WindowPostgresOption configures a WindowPostgresStore.
type WindowPostgresOption func(*WindowPostgresStore)

// WithPostgresClock sets the time source used for expiry checks.
func WithPostgresClock(now func() time.Time) WindowPostgresOption {
	return func(p *WindowPostgresStore) { p.now = now }
}

// WithPostgresLogger sets the logger used by the janitor.
func WithPostgresLogger(logger *zap.Logger) WindowPostgresOption {
	return func(p *WindowPostgresStore) { p.logger = logger }
}

// NewWindowPostgresStore creates a new PostgreSQL-backed window store.
func NewWindowPostgresStore(pool *pgxpool.Pool, opts ...WindowPostgresOption) *WindowPostgresStore {
	p := &WindowPostgresStore{pool: pool, now: time.Now, logger: zap.NewNop()}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// EnsureSchema creates the rate_windows table if it does not exist.
func (p *WindowPostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, windowSchema)

	return classify("ensure schema", err)
}

func (p *WindowPostgresStore) Query(ctx context.Context, key ratelimit.ClientKey) (int64, bool, error) {
	query := `
		SELECT remaining
		FROM rate_windows
		WHERE key = $1 AND expires_at > $2
	`

	var remaining int64

	err := p.pool.QueryRow(ctx, query, string(key), p.now()).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, classify("query", err)
	}

	return remaining, true, nil
}

func (p *WindowPostgresStore) TryConsume(ctx context.Context, key ratelimit.ClientKey) (ratelimit.ConsumeResult, error) {
	// The row lock taken by UPDATE serializes concurrent consumers of one key.
	query := `
		WITH consumed AS (
			UPDATE rate_windows
			SET remaining = remaining - 1
			WHERE key = $1 AND expires_at > $2 AND remaining > 0
			RETURNING remaining
		)
		SELECT
			(SELECT remaining FROM consumed),
			(SELECT remaining FROM rate_windows WHERE key = $1 AND expires_at > $2)
	`

	var consumed, current *int64

	err := p.pool.QueryRow(ctx, query, string(key), p.now()).Scan(&consumed, &current)
	if err != nil {
		return ratelimit.ConsumeResult{}, classify("consume", err)
	}

	switch {
	case consumed != nil:
		return ratelimit.ConsumeResult{Outcome: ratelimit.Admitted, Remaining: *consumed}, nil
	case current != nil:
		return ratelimit.ConsumeResult{Outcome: ratelimit.Exhausted}, nil
	default:
		return ratelimit.ConsumeResult{Outcome: ratelimit.NotFound}, nil
	}
}

func (p *WindowPostgresStore) Create(
	ctx context.Context, key ratelimit.ClientKey, remaining int64, expiry time.Time,
) error {
	// A stale row is replaced in place; a live one is left alone.
	query := `
		INSERT INTO rate_windows (key, remaining, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET remaining = EXCLUDED.remaining, expires_at = EXCLUDED.expires_at
		WHERE rate_windows.expires_at <= $4
	`

	tag, err := p.pool.Exec(ctx, query, string(key), remaining, expiry, p.now())
	if err != nil {
		return classify("create", err)
	}

	if tag.RowsAffected() == 0 {
		return ratelimit.ErrEntryExists
	}

	return nil
}

func (p *WindowPostgresStore) TimeToLive(
	ctx context.Context, key ratelimit.ClientKey, fallback time.Duration,
) (time.Duration, error) {
	query := `
		SELECT expires_at
		FROM rate_windows
		WHERE key = $1 AND expires_at > $2
	`

	now := p.now()

	var expiresAt time.Time

	err := p.pool.QueryRow(ctx, query, string(key), now).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fallback, nil
		}

		return 0, classify("ttl", err)
	}

	return expiresAt.Sub(now), nil
}

func (p *WindowPostgresStore) Remove(ctx context.Context, key ratelimit.ClientKey) (int64, error) {
	query := `
		DELETE FROM rate_windows
		WHERE key = $1
		RETURNING remaining, expires_at
	`

	var (
		remaining int64
		expiresAt time.Time
	)

	err := p.pool.QueryRow(ctx, query, string(key)).Scan(&remaining, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}

		return 0, classify("remove", err)
	}

	if !p.now().Before(expiresAt) {
		return 0, nil
	}

	return remaining, nil
}

// Sweep deletes expired rows and returns how many were removed.
func (p *WindowPostgresStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rate_windows WHERE expires_at <= $1`, p.now())
	if err != nil {
		return 0, classify("sweep", err)
	}

	return tag.RowsAffected(), nil
}

// StartJanitor runs Sweep every interval until Shutdown is called.
// It is a no-op for a non-positive interval or when a janitor is already running.
func (p *WindowPostgresStore) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}

	p.janitorMu.Lock()
	defer p.janitorMu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.janitorLoop(ctx, interval, p.done)
}

func (p *WindowPostgresStore) janitorLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := p.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("window sweep failed", zap.Error(err))
				}

				continue
			}

			if removed > 0 {
				p.logger.Debug("expired windows swept", zap.Int64("removed", removed))
			}
		}
	}
}

// Shutdown stops the janitor, if any. The pool is owned by the caller.
func (p *WindowPostgresStore) Shutdown() error {
	p.janitorMu.Lock()
	defer p.janitorMu.Unlock()

	if p.cancel == nil {
		return nil
	}

	p.cancel()
	<-p.done
	p.cancel = nil

	return nil
}

// Ping checks that PostgreSQL is reachable.
func (p *WindowPostgresStore) Ping(ctx context.Context) error {
	return classify("ping", p.pool.Ping(ctx))
}

// Compile-time check.
var _ ratelimit.Store = (*WindowPostgresStore)(nil)
