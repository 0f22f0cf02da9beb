package middleware

import (
	"net/http"
	"strings"

	"github.com/serroba/window-limiter/internal/analytics"
	"github.com/serroba/window-limiter/internal/ratelimit"
	"go.uber.org/zap"
)

// httpRequest exposes an *http.Request to identifier extractors.
type httpRequest struct {
	r *http.Request
}

func (h httpRequest) RemoteAddr() string        { return h.r.RemoteAddr }
func (h httpRequest) Header(name string) string { return h.r.Header.Get(name) }

// headerSetter writes annotator output into an http.Header.
type headerSetter http.Header

func (h headerSetter) SetHeader(name, value string) { http.Header(h).Set(name, value) }

// HTTPRateLimiter is the net/http counterpart of RateLimiter, for limiting every route
// of a router rather than individual Huma operations.
func HTTPRateLimiter(engine *ratelimit.Engine, opts Options, logger *zap.Logger) func(http.Handler) http.Handler {
	recorder := opts.recorder()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt(r.URL.Path, opts.ExemptPrefixes) {
				next.ServeHTTP(w, r)

				return
			}

			d, err := engine.Decide(r.Context(), httpRequest{r: r})
			if err != nil {
				status := indeterminateStatus(err, opts.FailOpen)
				logIndeterminate(logger, err, status, r.Method, r.URL.Path)

				if status == 0 {
					next.ServeHTTP(w, r)

					return
				}

				http.Error(w, indeterminateMessage(status), status)

				return
			}

			ratelimit.Annotate(headerSetter(w.Header()), d)
			record(recorder, analytics.NewDecisionEvent(d, r.Method, r.URL.Path, opts.now()), logger)

			if !d.Admitted {
				logger.Debug("request rejected",
					zap.String("key", string(d.Key)),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				w.WriteHeader(http.StatusTooManyRequests)

				return
			}

			next.ServeHTTP(w, r.WithContext(ratelimit.ContextWithDecision(r.Context(), d)))
		})
	}
}

func exempt(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}
