package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// maxTransitions bounds how often a single decision may see the entry change state
// (created by someone else, expired between query and consume).
const maxTransitions = 3

// Decision is the outcome of an admission check.
type Decision struct {
	Key      ClientKey
	Admitted bool
	// Limit is the configured quota.
	Limit int64
	// Remaining is what the caller had available going into this request;
	// 0 on rejection.
	Remaining int64
	// Reset is the time until the window of Key ends.
	Reset time.Duration
}

// ResetSeconds returns Reset in whole seconds, rounded up and never negative.
func (d *Decision) ResetSeconds() int64 {
	if d.Reset <= 0 {
		return 0
	}

	return int64((d.Reset + time.Second - 1) / time.Second)
}

// Snapshot is the stored state of a key as reported by Engine.Inspect.
type Snapshot struct {
	Key       ClientKey
	Found     bool
	Remaining int64
	Reset     time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used to compute window expiries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine turns requests into fixed-window admission decisions.
// It keeps no mutable state of its own; the store does all synchronization.
type Engine struct {
	store      Store
	cfg        Config
	identifier Extractor
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine creates a decision engine enforcing cfg against store.
func NewEngine(store Store, cfg Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}

	identifier := cfg.Identifier
	if identifier == nil {
		identifier = PeerAddr()
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:      store,
		cfg:        cfg,
		identifier: identifier,
		logger:     logger,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Config returns the quota enforced by the engine.
func (e *Engine) Config() Config {
	return e.cfg
}

// Decide derives the client key of req and admits or rejects the request.
//
// A rejection is a normal decision, not an error. Errors mean no decision could be made
// (see IsIndeterminate) and are returned as they came from the extractor or store.
func (e *Engine) Decide(ctx context.Context, req Request) (*Decision, error) {
	key, err := e.identifier.Extract(req)
	if err != nil {
		if !errors.Is(err, ErrIdentifierUnavailable) {
			err = fmt.Errorf("%w: %w", ErrIdentifierUnavailable, err)
		}

		return nil, err
	}

	return e.DecideKey(ctx, key)
}

// DecideKey runs the admission check for an already derived key.
func (e *Engine) DecideKey(ctx context.Context, key ClientKey) (*Decision, error) {
	remaining, found, err := e.store.Query(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", key, err)
	}

	exhausted := found && remaining <= 0

	for range maxTransitions {
		switch {
		case !found:
			created, err := e.openWindow(ctx, key)
			if err != nil {
				return nil, err
			}

			if created {
				return e.decision(key, true, e.cfg.MaxRequests, e.cfg.Window), nil
			}
			// Another decision opened the window first; take a unit from it.
		case exhausted:
			return e.reject(ctx, key)
		}

		res, err := e.store.TryConsume(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("consume %q: %w", key, err)
		}

		switch res.Outcome {
		case Admitted:
			return e.admit(ctx, key, res.Remaining)
		case Exhausted:
			return e.reject(ctx, key)
		case NotFound:
			found, exhausted = false, false
		default:
			return nil, fmt.Errorf("%w: consume %q returned %s", ErrStoreProtocol, key, res.Outcome)
		}
	}

	return nil, fmt.Errorf("%w: %q changed state %d times", ErrStoreContention, key, maxTransitions)
}

// Inspect reports the stored state of key without consuming from it.
func (e *Engine) Inspect(ctx context.Context, key ClientKey) (*Snapshot, error) {
	remaining, found, err := e.store.Query(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", key, err)
	}

	snap := &Snapshot{Key: key, Found: found, Remaining: remaining}
	if !found {
		return snap, nil
	}

	snap.Reset, err = e.store.TimeToLive(ctx, key, e.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("ttl %q: %w", key, err)
	}

	return snap, nil
}

// Reset removes the window of key so its next request opens a fresh one.
// It returns the remaining count the key had.
func (e *Engine) Reset(ctx context.Context, key ClientKey) (int64, error) {
	previous, err := e.store.Remove(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("remove %q: %w", key, err)
	}

	return previous, nil
}

// openWindow creates the entry for a key without a live one.
// The opening request consumes its own unit, so the entry starts at MaxRequests-1.
func (e *Engine) openWindow(ctx context.Context, key ClientKey) (bool, error) {
	expiry := e.now().Add(e.cfg.Window)

	err := e.store.Create(ctx, key, e.cfg.MaxRequests-1, expiry)
	if errors.Is(err, ErrEntryExists) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("create %q: %w", key, err)
	}

	return true, nil
}

func (e *Engine) admit(ctx context.Context, key ClientKey, remainingAfter int64) (*Decision, error) {
	// Report what the caller had going in, before this request's decrement.
	return e.decision(key, true, remainingAfter+1, e.ttl(ctx, key)), nil
}

func (e *Engine) reject(ctx context.Context, key ClientKey) (*Decision, error) {
	e.logger.Info("rate limit exceeded", zap.String("key", string(key)))

	return e.decision(key, false, 0, e.ttl(ctx, key)), nil
}

// ttl returns the time left in the window of key. A store failure here only
// affects the reset header, so it falls back to the window length.
func (e *Engine) ttl(ctx context.Context, key ClientKey) time.Duration {
	ttl, err := e.store.TimeToLive(ctx, key, e.cfg.Window)
	if err != nil {
		e.logger.Warn("window ttl unavailable, reporting full window",
			zap.String("key", string(key)),
			zap.Error(err),
		)

		return e.cfg.Window
	}

	return ttl
}

func (e *Engine) decision(key ClientKey, admitted bool, remaining int64, reset time.Duration) *Decision {
	return &Decision{
		Key:       key,
		Admitted:  admitted,
		Limit:     e.cfg.MaxRequests,
		Remaining: remaining,
		Reset:     reset,
	}
}
