package analytics

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrBufferFull is returned by Buffered.Record when the queue has no room.
	ErrBufferFull = errors.New("analytics buffer full")
	// ErrRecorderClosed is returned by Buffered.Record after Shutdown.
	ErrRecorderClosed = errors.New("analytics recorder closed")
)

// Buffered hands events to a background worker so publishing never runs on the
// request path. Events that do not fit in the queue are dropped.
type Buffered struct {
	next   Recorder
	logger *zap.Logger
	events chan *DecisionEvent

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewBuffered starts a worker forwarding up to size queued events to next.
func NewBuffered(next Recorder, size int, logger *zap.Logger) *Buffered {
	if size < 1 {
		size = 1
	}

	b := &Buffered{
		next:   next,
		logger: logger,
		events: make(chan *DecisionEvent, size),
		done:   make(chan struct{}),
	}

	go b.run()

	return b
}

func (b *Buffered) run() {
	defer close(b.done)

	for event := range b.events {
		if err := b.next.Record(event); err != nil {
			b.logger.Warn("failed to record decision event",
				zap.String("key", event.Key),
				zap.Error(err),
			)
		}
	}
}

// Record queues event without blocking.
func (b *Buffered) Record(event *DecisionEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrRecorderClosed
	}

	select {
	case b.events <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Shutdown stops accepting events and waits until the queue is drained.
func (b *Buffered) Shutdown() error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return nil
	}

	b.closed = true
	close(b.events)
	b.mu.Unlock()

	<-b.done

	return nil
}

var _ Recorder = (*Buffered)(nil)
