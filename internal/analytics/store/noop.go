package store

import (
	"context"

	"github.com/serroba/window-limiter/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveDecision(_ context.Context, event *analytics.DecisionEvent) error {
	n.logger.Info("decision event received",
		zap.String("key", event.Key),
		zap.String("outcome", string(event.Outcome)),
		zap.Int64("remaining", event.Remaining),
		zap.Int64("limit", event.Limit),
		zap.Time("decidedAt", event.DecidedAt),
	)

	return nil
}

var _ analytics.Store = (*Noop)(nil)
