package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/window-limiter/internal/ratelimit"
)

// RegisterRoutes registers the demo and admin routes.
// Admin routes are skipped unless admin has a token. They require it as a bearer token
// and are exempt from rate limiting so an operator can always reach them.
func RegisterRoutes(api huma.API, admin *AdminHandler) {
	// GET /hello - rate limited demo endpoint
	huma.Register(api, huma.Operation{
		OperationID: "hello",
		Method:      http.MethodGet,
		Path:        "/hello",
		Summary:     "Say hello",
		Description: "Rate limited endpoint reporting the quota the request was admitted under.",
		Tags:        []string{"Demo"},
		Responses: map[string]*huma.Response{
			"429": {Description: "Rate limit exceeded; see the x-ratelimit-* headers."},
		},
	}, Hello)

	if !admin.Enabled() {
		return
	}

	guard := huma.Middlewares{admin.requireToken(api)}

	// GET /ratelimit/keys/{key} - inspect a window
	huma.Register(api, huma.Operation{
		OperationID: "inspect-window",
		Method:      http.MethodGet,
		Path:        "/ratelimit/keys/{key}",
		Summary:     "Inspect rate limit window",
		Description: "Reports the remaining requests and reset time of a client key without consuming.",
		Tags:        []string{"Admin"},
		Metadata:    ratelimit.ExemptMetadata(),
		Middlewares: guard,
	}, admin.Inspect)

	// DELETE /ratelimit/keys/{key} - remove a window
	huma.Register(api, huma.Operation{
		OperationID: "reset-window",
		Method:      http.MethodDelete,
		Path:        "/ratelimit/keys/{key}",
		Summary:     "Reset rate limit window",
		Description: "Removes the window of a client key so its next request starts a new one.",
		Tags:        []string{"Admin"},
		Metadata:    ratelimit.ExemptMetadata(),
		Middlewares: guard,
	}, admin.Reset)

	// GET /ratelimit/stats/{key} - decision counters
	huma.Register(api, huma.Operation{
		OperationID: "window-stats",
		Method:      http.MethodGet,
		Path:        "/ratelimit/stats/{key}",
		Summary:     "Decision statistics",
		Description: "Admitted and rejected decision counts of a client key, when analytics are aggregated.",
		Tags:        []string{"Admin"},
		Metadata:    ratelimit.ExemptMetadata(),
		Middlewares: guard,
	}, admin.Stats)
}
