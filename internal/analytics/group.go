package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// ErrGroupStarted is returned by Start when the group is already running.
var ErrGroupStarted = errors.New("consumer group already started")

// Runnable is a consumer the group can start and stop.
type Runnable interface {
	Topic() string
	Start(ctx context.Context) error
	Shutdown() error
}

// ConsumerGroup runs the decision consumers of one process.
// It owns the subscriber they share and closes it after all of them stopped.
type ConsumerGroup struct {
	consumers  []Runnable
	running    []Runnable
	subscriber message.Subscriber
	logger     *zap.Logger
}

func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Add registers a consumer. It must be called before Start.
func (g *ConsumerGroup) Add(consumer Runnable) {
	g.consumers = append(g.consumers, consumer)
}

// Start starts the consumers in order. If one fails, those already running are stopped.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	if len(g.running) > 0 {
		return ErrGroupStarted
	}

	for _, consumer := range g.consumers {
		if err := consumer.Start(ctx); err != nil {
			_ = g.stopRunning()

			return fmt.Errorf("start consumer for %s: %w", consumer.Topic(), err)
		}

		g.running = append(g.running, consumer)
		g.logger.Debug("consumer started", zap.String("topic", consumer.Topic()))
	}

	g.logger.Info("consumer group started", zap.Int("count", len(g.running)))

	return nil
}

// Shutdown stops the running consumers in reverse start order, then closes the subscriber.
// Every error seen is returned.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("shutting down consumer group", zap.Int("count", len(g.running)))

	err := g.stopRunning()

	if closeErr := g.subscriber.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("close subscriber: %w", closeErr))
	}

	return err
}

func (g *ConsumerGroup) stopRunning() error {
	var errs []error

	for i := len(g.running) - 1; i >= 0; i-- {
		if err := g.running[i].Shutdown(); err != nil {
			g.logger.Warn("consumer shutdown failed",
				zap.String("topic", g.running[i].Topic()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	g.running = nil

	return errors.Join(errs...)
}
