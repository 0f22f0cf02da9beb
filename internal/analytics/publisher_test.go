package analytics_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/window-limiter/internal/analytics"
	"github.com/serroba/window-limiter/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mu         sync.Mutex
	messages   []*message.Message
	topic      string
	publishErr error
	closeErr   error
}

func (m *mockPublisher) Publish(topic string, msgs ...*message.Message) error {
	if m.publishErr != nil {
		return m.publishErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.topic = topic
	m.messages = append(m.messages, msgs...)

	return nil
}

func (m *mockPublisher) Close() error {
	return m.closeErr
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.messages)
}

func TestNewDecisionEvent(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("admitted decision", func(t *testing.T) {
		d := &ratelimit.Decision{Key: "10.0.0.1", Admitted: true, Limit: 3, Remaining: 2, Reset: 1500 * time.Millisecond}

		event := analytics.NewDecisionEvent(d, "GET", "/hello", at)

		assert.NotEmpty(t, event.ID)
		assert.Equal(t, "10.0.0.1", event.Key)
		assert.Equal(t, analytics.OutcomeAdmitted, event.Outcome)
		assert.Equal(t, int64(3), event.Limit)
		assert.Equal(t, int64(2), event.Remaining)
		assert.Equal(t, int64(2), event.ResetSeconds)
		assert.Equal(t, "GET", event.Method)
		assert.Equal(t, "/hello", event.Path)
		assert.Equal(t, at, event.DecidedAt)
	})

	t.Run("rejected decision", func(t *testing.T) {
		event := analytics.NewDecisionEvent(&ratelimit.Decision{Key: "k", Limit: 3}, "", "", at)

		assert.Equal(t, analytics.OutcomeRejected, event.Outcome)
	})

	t.Run("ids are unique", func(t *testing.T) {
		d := &ratelimit.Decision{Key: "k"}

		assert.NotEqual(t,
			analytics.NewDecisionEvent(d, "", "", at).ID,
			analytics.NewDecisionEvent(d, "", "", at).ID,
		)
	})
}

func TestPublisher_Record(t *testing.T) {
	t.Run("publishes event successfully", func(t *testing.T) {
		mock := &mockPublisher{}
		pub := analytics.NewPublisher(mock)

		event := &analytics.DecisionEvent{
			ID:        "evt-1",
			Key:       "10.0.0.1",
			Outcome:   analytics.OutcomeRejected,
			Limit:     3,
			DecidedAt: time.Now(),
		}

		err := pub.Record(event)

		require.NoError(t, err)
		assert.Equal(t, analytics.TopicDecisions, mock.topic)
		require.Len(t, mock.messages, 1)
		assert.Equal(t, "evt-1", mock.messages[0].UUID)

		var got analytics.DecisionEvent
		require.NoError(t, json.Unmarshal(mock.messages[0].Payload, &got))
		assert.Equal(t, event.Key, got.Key)
		assert.Equal(t, event.Outcome, got.Outcome)
	})

	t.Run("generates message id when event has none", func(t *testing.T) {
		mock := &mockPublisher{}
		pub := analytics.NewPublisher(mock)

		require.NoError(t, pub.Record(&analytics.DecisionEvent{Key: "k"}))
		assert.NotEmpty(t, mock.messages[0].UUID)
	})

	t.Run("returns error when publish fails", func(t *testing.T) {
		mock := &mockPublisher{publishErr: errors.New("publish error")}
		pub := analytics.NewPublisher(mock)

		err := pub.Record(&analytics.DecisionEvent{Key: "k"})

		assert.Error(t, err)
	})
}

func TestPublisher_Shutdown(t *testing.T) {
	t.Run("closes publisher", func(t *testing.T) {
		pub := analytics.NewPublisher(&mockPublisher{})

		assert.NoError(t, pub.Shutdown())
	})

	t.Run("returns close error", func(t *testing.T) {
		pub := analytics.NewPublisher(&mockPublisher{closeErr: errors.New("close error")})

		assert.Error(t, pub.Shutdown())
	})
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, analytics.Discard{}.Record(&analytics.DecisionEvent{}))
}
