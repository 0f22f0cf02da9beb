package handlers

import (
	"context"

	"github.com/serroba/window-limiter/internal/ratelimit"
)

// Hello is the rate limited demo operation. It echoes the quota the request was admitted under.
func Hello(ctx context.Context, _ *struct{}) (*HelloResponse, error) {
	resp := &HelloResponse{}
	resp.Body.Message = "hello"

	if d := ratelimit.DecisionFromContext(ctx); d != nil {
		resp.Body.Limit = d.Limit
		resp.Body.Remaining = d.Remaining
	}

	return resp, nil
}
