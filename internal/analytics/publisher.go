package analytics

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const TopicDecisions = "ratelimit.decisions"

// Recorder receives decision events. Recording is best-effort; callers log failures
// and never let them change a decision.
type Recorder interface {
	Record(event *DecisionEvent) error
}

// Publisher publishes decision events to a message broker.
type Publisher struct {
	publisher message.Publisher
}

// NewPublisher creates a new decision event publisher.
func NewPublisher(publisher message.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

// Record publishes event on TopicDecisions.
func (p *Publisher) Record(event *DecisionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	id := event.ID
	if id == "" {
		id = watermill.NewUUID()
	}

	return p.publisher.Publish(TopicDecisions, message.NewMessage(id, payload))
}

// Shutdown closes the underlying publisher.
func (p *Publisher) Shutdown() error {
	return p.publisher.Close()
}

// Discard drops every event.
type Discard struct{}

func (Discard) Record(_ *DecisionEvent) error { return nil }

var (
	_ Recorder = (*Publisher)(nil)
	_ Recorder = Discard{}
)
