package ratelimit

import "context"

type decisionKey struct{}

// ContextWithDecision adds the admission decision of the current request to ctx.
func ContextWithDecision(ctx context.Context, d *Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns the decision stored by ContextWithDecision, or nil.
func DecisionFromContext(ctx context.Context) *Decision {
	d, _ := ctx.Value(decisionKey{}).(*Decision)

	return d
}
