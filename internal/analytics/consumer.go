package analytics

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Consumer consumes decision events and persists them to the store.
type Consumer struct {
	subscriber message.Subscriber
	store      Store
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewConsumer creates a new decision event consumer.
func NewConsumer(subscriber message.Subscriber, store Store, logger *zap.Logger) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		store:      store,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer) Topic() string {
	return TopicDecisions
}

// Start begins consuming messages from TopicDecisions.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, TopicDecisions)
	if err != nil {
		c.cancel()
		close(c.done)

		return err
	}

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleDecision(ctx, msg)
		}
	}
}

func (c *Consumer) handleDecision(ctx context.Context, msg *message.Message) {
	var event DecisionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Error("failed to unmarshal decision event",
			zap.String("messageId", msg.UUID),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	if err := c.store.SaveDecision(ctx, &event); err != nil {
		c.logger.Error("failed to save decision event",
			zap.String("key", event.Key),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	msg.Ack()

	c.logger.Debug("processed decision event",
		zap.String("key", event.Key),
		zap.String("outcome", string(event.Outcome)),
	)
}

// Shutdown stops the consumer and waits for in-flight messages to complete.
func (c *Consumer) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}

	<-c.done

	return nil
}
