package ratelimit

import (
	"context"
	"time"
)

// ConsumeOutcome is the result kind of a TryConsume call.
type ConsumeOutcome int

const (
	// Admitted means one unit was taken from a live entry.
	Admitted ConsumeOutcome = iota + 1
	// Exhausted means the live entry has no units left.
	Exhausted
	// NotFound means there is no live entry for the key.
	NotFound
)

func (o ConsumeOutcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Exhausted:
		return "exhausted"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ConsumeResult is returned by Store.TryConsume.
// Remaining is only meaningful for Admitted and holds the value after the decrement.
type ConsumeResult struct {
	Outcome   ConsumeOutcome
	Remaining int64
}

// Store holds fixed-window counters keyed by client.
//
// Implementations must be safe for concurrent use and linearizable per key.
// Operations on distinct keys are independent. An entry whose expiry has passed
// must be treated exactly like a missing one.
type Store interface {
	// Query returns the remaining count of the live entry for key.
	Query(ctx context.Context, key ClientKey) (remaining int64, found bool, err error)

	// TryConsume checks and decrements the live entry for key in a single atomic step.
	TryConsume(ctx context.Context, key ClientKey) (ConsumeResult, error)

	// Create installs a fresh entry, replacing an expired one.
	// It returns ErrEntryExists and leaves the entry untouched when a live one is present.
	Create(ctx context.Context, key ClientKey, remaining int64, expiry time.Time) error

	// TimeToLive returns the time left until the window of key ends,
	// or fallback when there is no live entry.
	TimeToLive(ctx context.Context, key ClientKey, fallback time.Duration) (time.Duration, error)

	// Remove deletes the entry and returns its previous remaining count (0 when absent).
	Remove(ctx context.Context, key ClientKey) (previous int64, err error)
}
