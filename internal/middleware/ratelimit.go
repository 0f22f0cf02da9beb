package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/window-limiter/internal/analytics"
	"github.com/serroba/window-limiter/internal/ratelimit"
	"go.uber.org/zap"
)

// Options configures the rate limiting adapters.
type Options struct {
	// FailOpen forwards requests without rate limit headers when the store cannot
	// be reached. By default such requests are answered with 503.
	FailOpen bool
	// Recorder receives every decision. Nil discards them.
	Recorder analytics.Recorder
	// ExemptPrefixes lists path prefixes HTTPRateLimiter never limits.
	ExemptPrefixes []string
	// Now stamps decision events. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) recorder() analytics.Recorder {
	if o.Recorder == nil {
		return analytics.Discard{}
	}

	return o.Recorder
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}

	return o.Now()
}

// RateLimiter returns a Huma middleware enforcing the engine's fixed-window quota.
//
// Operations exempted through ratelimit.MetadataKey pass straight through. Both admitted and
// rejected responses carry the x-ratelimit-* headers; rejected ones get 429 and an empty body.
// Admitted requests find their decision via ratelimit.DecisionFromContext.
func RateLimiter(
	api huma.API,
	engine *ratelimit.Engine,
	opts Options,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	recorder := opts.recorder()

	return func(ctx huma.Context, next func(huma.Context)) {
		if ratelimit.IsExempt(ctx) {
			next(ctx)

			return
		}

		path := getOperationPath(ctx)

		d, err := engine.Decide(ctx.Context(), ctx)
		if err != nil {
			status := indeterminateStatus(err, opts.FailOpen)
			logIndeterminate(logger, err, status, ctx.Method(), path)

			if status == 0 {
				next(ctx)

				return
			}

			_ = huma.WriteErr(api, ctx, status, indeterminateMessage(status))

			return
		}

		ratelimit.Annotate(ctx, d)
		record(recorder, analytics.NewDecisionEvent(d, ctx.Method(), path, opts.now()), logger)

		if !d.Admitted {
			logger.Debug("request rejected",
				zap.String("key", string(d.Key)),
				zap.String("method", ctx.Method()),
				zap.String("path", path),
				zap.Int64("resetSeconds", d.ResetSeconds()),
			)
			ctx.SetStatus(http.StatusTooManyRequests)

			return
		}

		next(huma.WithContext(ctx, ratelimit.ContextWithDecision(ctx.Context(), d)))
	}
}

// getOperationPath extracts the path from the operation, if available.
func getOperationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

// indeterminateStatus maps a failed decision onto a response status.
// Zero means the request should be forwarded.
func indeterminateStatus(err error, failOpen bool) int {
	switch {
	case errors.Is(err, ratelimit.ErrIdentifierUnavailable):
		return http.StatusBadRequest
	case failOpen:
		return 0
	default:
		return http.StatusServiceUnavailable
	}
}

func indeterminateMessage(status int) string {
	if status == http.StatusBadRequest {
		return "client identifier unavailable"
	}

	return "rate limiter unavailable"
}

func logIndeterminate(logger *zap.Logger, err error, status int, method, path string) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Error(err),
	}

	switch status {
	case 0:
		logger.Warn("rate limit check failed, forwarding request", fields...)
	case http.StatusBadRequest:
		logger.Info("rate limit check skipped, no client identifier", fields...)
	default:
		logger.Error("rate limit check failed", fields...)
	}
}

func record(recorder analytics.Recorder, event *analytics.DecisionEvent, logger *zap.Logger) {
	if err := recorder.Record(event); err != nil {
		logger.Debug("decision event dropped", zap.String("key", event.Key), zap.Error(err))
	}
}
