package ratelimit

import (
	"fmt"
	"time"
)

// ClientKey identifies a caller for the duration of one window.
type ClientKey string

// Config describes a fixed-window quota.
// It is read concurrently by every decision and must not be changed after NewEngine.
type Config struct {
	// Window is the length of a fixed window. It starts at the first request from a key.
	Window time.Duration
	// MaxRequests is the number of requests admitted per key and window.
	MaxRequests int64
	// Identifier derives the client key. PeerAddr is used when nil.
	Identifier Extractor
}

// Validate checks that the config can be enforced.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}

	if c.MaxRequests < 1 {
		return fmt.Errorf("%w: max requests must be at least 1, got %d", ErrInvalidConfig, c.MaxRequests)
	}

	return nil
}
