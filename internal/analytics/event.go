package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/serroba/window-limiter/internal/ratelimit"
)

// Outcome is the verdict recorded for a decision.
type Outcome string

const (
	OutcomeAdmitted Outcome = "admitted"
	OutcomeRejected Outcome = "rejected"
)

// DecisionEvent represents an admission decision taken by the rate limiter.
type DecisionEvent struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	Outcome      Outcome   `json:"outcome"`
	Limit        int64     `json:"limit"`
	Remaining    int64     `json:"remaining"`
	ResetSeconds int64     `json:"resetSeconds"`
	Method       string    `json:"method,omitempty"`
	Path         string    `json:"path,omitempty"`
	DecidedAt    time.Time `json:"decidedAt"`
}

// NewDecisionEvent builds the event for d taken on a request to method and path.
func NewDecisionEvent(d *ratelimit.Decision, method, path string, at time.Time) *DecisionEvent {
	outcome := OutcomeRejected
	if d.Admitted {
		outcome = OutcomeAdmitted
	}

	return &DecisionEvent{
		ID:           uuid.NewString(),
		Key:          string(d.Key),
		Outcome:      outcome,
		Limit:        d.Limit,
		Remaining:    d.Remaining,
		ResetSeconds: d.ResetSeconds(),
		Method:       method,
		Path:         path,
		DecidedAt:    at,
	}
}
