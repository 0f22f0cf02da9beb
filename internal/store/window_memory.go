package store

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/serroba/window-limiter/internal/ratelimit"
)

const defaultMemoryShards = 32

type windowEntry struct {
	remaining int64
	expiry    time.Time
}

type windowShard struct {
	mu      sync.Mutex
	entries map[ratelimit.ClientKey]windowEntry
}

// live returns the unexpired entry for key, evicting an expired one. Callers hold mu.
func (sh *windowShard) live(key ratelimit.ClientKey, now time.Time) (windowEntry, bool) {
	entry, ok := sh.entries[key]
	if !ok {
		return windowEntry{}, false
	}

	if !now.Before(entry.expiry) {
		delete(sh.entries, key)

		return windowEntry{}, false
	}

	return entry, true
}

// WindowMemoryStore is an in-memory implementation of ratelimit.Store.
//
// Keys are spread over shards, each guarded by its own mutex, so operations on a key
// are serialized while unrelated keys rarely contend. Expired entries are dropped lazily
// on access, or by the janitor when one is started.
type WindowMemoryStore struct {
	shards []*windowShard
	now    func() time.Time

	janitorMu sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// WindowMemoryOption configures a WindowMemoryStore.
type WindowMemoryOption func(*WindowMemoryStore)

// WithMemoryClock sets the time source used for expiry checks.
func WithMemoryClock(now func() time.Time) WindowMemoryOption {
	return func(s *WindowMemoryStore) { s.now = now }
}

// WithShards sets the number of lock shards.
func WithShards(n int) WindowMemoryOption {
	return func(s *WindowMemoryStore) {
		if n > 0 {
			s.shards = newShards(n)
		}
	}
}

// NewWindowMemoryStore creates a new in-memory window store.
func NewWindowMemoryStore(opts ...WindowMemoryOption) *WindowMemoryStore {
	s := &WindowMemoryStore{
		shards: newShards(defaultMemoryShards),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func newShards(n int) []*windowShard {
	shards := make([]*windowShard, n)
	for i := range shards {
		shards[i] = &windowShard{entries: make(map[ratelimit.ClientKey]windowEntry)}
	}

	return shards
}

func (s *WindowMemoryStore) shard(key ratelimit.ClientKey) *windowShard {
	return s.shards[xxhash.Sum64String(string(key))%uint64(len(s.shards))]
}

func (s *WindowMemoryStore) Query(_ context.Context, key ratelimit.ClientKey) (int64, bool, error) {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.live(key, s.now())

	return entry.remaining, ok, nil
}

func (s *WindowMemoryStore) TryConsume(_ context.Context, key ratelimit.ClientKey) (ratelimit.ConsumeResult, error) {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.live(key, s.now())
	if !ok {
		return ratelimit.ConsumeResult{Outcome: ratelimit.NotFound}, nil
	}

	if entry.remaining <= 0 {
		return ratelimit.ConsumeResult{Outcome: ratelimit.Exhausted}, nil
	}

	entry.remaining--
	sh.entries[key] = entry

	return ratelimit.ConsumeResult{Outcome: ratelimit.Admitted, Remaining: entry.remaining}, nil
}

func (s *WindowMemoryStore) Create(
	_ context.Context, key ratelimit.ClientKey, remaining int64, expiry time.Time,
) error {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.live(key, s.now()); ok {
		return ratelimit.ErrEntryExists
	}

	sh.entries[key] = windowEntry{remaining: remaining, expiry: expiry}

	return nil
}

func (s *WindowMemoryStore) TimeToLive(
	_ context.Context, key ratelimit.ClientKey, fallback time.Duration,
) (time.Duration, error) {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()

	entry, ok := sh.live(key, now)
	if !ok {
		return fallback, nil
	}

	return entry.expiry.Sub(now), nil
}

func (s *WindowMemoryStore) Remove(_ context.Context, key ratelimit.ClientKey) (int64, error) {
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := sh.live(key, s.now())
	delete(sh.entries, key)

	if !ok {
		return 0, nil
	}

	return entry.remaining, nil
}

// Ping always succeeds; the store has no backend to reach.
func (s *WindowMemoryStore) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (s *WindowMemoryStore) Len() int {
	n := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}

	return n
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *WindowMemoryStore) Sweep() int {
	removed := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		now := s.now()

		for key, entry := range sh.entries {
			if !now.Before(entry.expiry) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	return removed
}

// StartJanitor sweeps expired entries every interval until Shutdown is called.
// It is a no-op for a non-positive interval or when a janitor is already running.
func (s *WindowMemoryStore) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.janitorMu.Lock()
	defer s.janitorMu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.janitorLoop(ctx, interval, s.done)
}

func (s *WindowMemoryStore) janitorLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Shutdown stops the janitor, if any, and waits for it to exit.
func (s *WindowMemoryStore) Shutdown() error {
	s.janitorMu.Lock()
	defer s.janitorMu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil

	return nil
}

// Compile-time check.
var _ ratelimit.Store = (*WindowMemoryStore)(nil)
