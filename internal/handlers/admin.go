package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/window-limiter/internal/analytics/store"
	"github.com/serroba/window-limiter/internal/ratelimit"
	"go.uber.org/zap"
)

// StatsReader reads aggregated decision counters.
type StatsReader interface {
	ForKey(ctx context.Context, key string) (store.Counts, error)
}

// AdminHandler exposes the stored window state of client keys.
// Its routes are only registered when a token is configured.
type AdminHandler struct {
	engine *ratelimit.Engine
	stats  StatsReader
	logger *zap.Logger
	token  string
}

// AdminOption configures an AdminHandler.
type AdminOption func(*AdminHandler)

// WithToken sets the bearer token admin requests must present.
func WithToken(token string) AdminOption {
	return func(h *AdminHandler) { h.token = token }
}

// NewAdminHandler creates a new admin handler. stats may be nil when decision
// analytics are not aggregated.
func NewAdminHandler(engine *ratelimit.Engine, stats StatsReader, logger *zap.Logger, opts ...AdminOption) *AdminHandler {
	h := &AdminHandler{engine: engine, stats: stats, logger: logger}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Enabled reports whether the admin routes should be served.
func (h *AdminHandler) Enabled() bool {
	return h != nil && h.token != ""
}

// requireToken refuses admin requests without the configured bearer token.
func (h *AdminHandler) requireToken(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	want := []byte("Bearer " + h.token)

	return func(ctx huma.Context, next func(huma.Context)) {
		if subtle.ConstantTimeCompare([]byte(ctx.Header("Authorization")), want) != 1 {
			h.logger.Warn("admin request refused",
				zap.String("method", ctx.Method()),
				zap.String("path", ctx.URL().Path),
			)
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "admin token required")

			return
		}

		next(ctx)
	}
}

// Inspect reports the window of a key without consuming from it.
func (h *AdminHandler) Inspect(ctx context.Context, req *KeyRequest) (*InspectResponse, error) {
	snap, err := h.engine.Inspect(ctx, ratelimit.ClientKey(req.Key))
	if err != nil {
		return nil, h.storeError("inspect", req.Key, err)
	}

	resp := &InspectResponse{}
	resp.Body.Key = req.Key
	resp.Body.Found = snap.Found
	resp.Body.Limit = h.engine.Config().MaxRequests

	if snap.Found {
		d := ratelimit.Decision{Limit: resp.Body.Limit, Remaining: snap.Remaining, Reset: snap.Reset}
		resp.Body.Remaining = snap.Remaining
		resp.Body.ResetSeconds = d.ResetSeconds()
	} else {
		resp.Body.Remaining = resp.Body.Limit
	}

	return resp, nil
}

// Reset removes the window of a key; its next request opens a fresh one.
func (h *AdminHandler) Reset(ctx context.Context, req *KeyRequest) (*ResetResponse, error) {
	previous, err := h.engine.Reset(ctx, ratelimit.ClientKey(req.Key))
	if err != nil {
		return nil, h.storeError("reset", req.Key, err)
	}

	h.logger.Info("rate limit window reset",
		zap.String("key", req.Key),
		zap.Int64("previous", previous),
	)

	resp := &ResetResponse{}
	resp.Body.Key = req.Key
	resp.Body.Previous = previous

	return resp, nil
}

// Stats returns the aggregated decision counters of a key.
func (h *AdminHandler) Stats(ctx context.Context, req *KeyRequest) (*StatsResponse, error) {
	if h.stats == nil {
		return nil, huma.Error404NotFound("decision stats are not enabled")
	}

	counts, err := h.stats.ForKey(ctx, req.Key)
	if err != nil {
		h.logger.Error("failed to read decision stats", zap.String("key", req.Key), zap.Error(err))

		return nil, huma.Error503ServiceUnavailable("decision stats unavailable")
	}

	resp := &StatsResponse{}
	resp.Body.Key = req.Key
	resp.Body.Admitted = counts.Admitted
	resp.Body.Rejected = counts.Rejected

	return resp, nil
}

func (h *AdminHandler) storeError(op, key string, err error) error {
	h.logger.Error("window store call failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)

	if errors.Is(err, ratelimit.ErrStoreUnavailable) || errors.Is(err, ratelimit.ErrStoreTimeout) {
		return huma.Error503ServiceUnavailable("window store unavailable")
	}

	return huma.Error500InternalServerError("window store error")
}
