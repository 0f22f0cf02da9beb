package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/serroba/window-limiter/internal/ratelimit"
)

// classify maps a backend error onto the ratelimit store errors, keeping the cause.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %w", ratelimit.ErrStoreTimeout, op, err)
	}

	return fmt.Errorf("%w: %s: %w", ratelimit.ErrStoreUnavailable, op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func protocolError(op string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ratelimit.ErrStoreProtocol, op, fmt.Sprintf(format, args...))
}
