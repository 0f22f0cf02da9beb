package ratelimit

import "errors"

var (
	// ErrIdentifierUnavailable is returned when no client key can be derived from a request.
	ErrIdentifierUnavailable = errors.New("client identifier unavailable")

	// ErrStoreUnavailable is returned when a store backend call fails.
	ErrStoreUnavailable = errors.New("window store unavailable")

	// ErrStoreTimeout is returned when a store backend call times out.
	ErrStoreTimeout = errors.New("window store timeout")

	// ErrStoreProtocol is returned when a store backend answers with malformed data.
	ErrStoreProtocol = errors.New("window store protocol error")

	// ErrStoreContention is returned when an entry keeps changing state under a single decision.
	ErrStoreContention = errors.New("window store contention")

	// ErrEntryExists is returned by Store.Create when a live entry is already present.
	ErrEntryExists = errors.New("window entry exists")

	// ErrInvalidConfig is returned for a rate limit configuration that cannot be enforced.
	ErrInvalidConfig = errors.New("invalid rate limit config")
)

// IsIndeterminate reports whether err means no admission decision could be made.
// Such errors are never a quota verdict; the pipeline adapter decides whether to fail open or closed.
func IsIndeterminate(err error) bool {
	return errors.Is(err, ErrIdentifierUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStoreTimeout) ||
		errors.Is(err, ErrStoreProtocol) ||
		errors.Is(err, ErrStoreContention)
}
