package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/window-limiter/internal/ratelimit"
)

const defaultCheckTimeout = 2 * time.Second

const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Component is a named dependency reported by the health endpoint.
type Component struct {
	Name    string
	Checker Checker
}

// Handler handles health check operations.
type Handler struct {
	components []Component
	timeout    time.Duration
}

// NewHandler creates a new health handler checking components in order.
func NewHandler(components ...Component) *Handler {
	return &Handler{components: components, timeout: defaultCheckTimeout}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
}

// Check pings every component. A failing component degrades the status but the
// endpoint itself still answers 200.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = StatusOK
	resp.Body.Components = make(map[string]string, len(h.components))

	for _, c := range h.components {
		if err := h.ping(ctx, c.Checker); err != nil {
			resp.Body.Components[c.Name] = StatusUnhealthy
			resp.Body.Status = StatusDegraded

			continue
		}

		resp.Body.Components[c.Name] = StatusHealthy
	}

	return resp, nil
}

func (h *Handler) ping(ctx context.Context, checker Checker) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	return checker.Ping(ctx)
}

// RegisterRoutes registers health check routes. They are exempt from rate limiting.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
		Metadata:    ratelimit.ExemptMetadata(),
	}, h.Check)
}
