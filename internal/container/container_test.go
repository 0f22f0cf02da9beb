package container_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/window-limiter/internal/container"
	"github.com/serroba/window-limiter/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryOptions() *container.Options {
	return &container.Options{
		Backend:       container.BackendMemory,
		WindowSeconds: 60,
		MaxRequests:   2,
		Mode:          container.ModeOperation,
		Analytics:     container.AnalyticsOff,
		StatsStore:    container.StatsNoop,
		LogLevel:      "error",
	}
}

func newInjector(t *testing.T, opts *container.Options) *do.Injector {
	t.Helper()

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.WindowStorePackage(injector)
	container.RateLimitPackage(injector)
	container.AnalyticsPackage(injector)
	container.StatsPackage(injector)
	container.HealthPackage(injector)
	container.HTTPPackage(injector)

	t.Cleanup(func() { _ = injector.Shutdown() })

	return injector
}

func serve(t *testing.T, injector *do.Injector) *chi.Mux {
	t.Helper()

	router := do.MustInvoke[*chi.Mux](injector)
	_ = do.MustInvoke[huma.API](injector)

	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	return send(router, http.MethodGet, path, "")
}

func send(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestOptions_RateLimitConfig(t *testing.T) {
	t.Run("defaults to the peer address", func(t *testing.T) {
		opts := memoryOptions()
		cfg := opts.RateLimitConfig()

		require.NoError(t, cfg.Validate())
		assert.Equal(t, int64(2), cfg.MaxRequests)
		assert.Equal(t, time.Minute, cfg.Window)

		key, err := cfg.Identifier.Extract(fakeRequest{addr: "10.0.0.1:5555"})
		require.NoError(t, err)
		assert.Equal(t, ratelimit.ClientKey("10.0.0.1"), key)
	})

	t.Run("header key wins over forwarded", func(t *testing.T) {
		opts := memoryOptions()
		opts.KeyHeader = "X-Api-Key"
		opts.TrustForwarded = true

		key, err := opts.RateLimitConfig().Identifier.Extract(fakeRequest{
			addr:    "10.0.0.1:5555",
			headers: map[string]string{"X-Api-Key": "tenant-1", "X-Forwarded-For": "203.0.113.9"},
		})
		require.NoError(t, err)
		assert.Equal(t, ratelimit.ClientKey("tenant-1"), key)
	})

	t.Run("forwarded address when trusted", func(t *testing.T) {
		opts := memoryOptions()
		opts.TrustForwarded = true

		key, err := opts.RateLimitConfig().Identifier.Extract(fakeRequest{
			addr:    "10.0.0.1:5555",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
		})
		require.NoError(t, err)
		assert.Equal(t, ratelimit.ClientKey("203.0.113.9"), key)
	})
}

type fakeRequest struct {
	addr    string
	headers map[string]string
}

func (r fakeRequest) RemoteAddr() string        { return r.addr }
func (r fakeRequest) Header(name string) string { return r.headers[name] }

func TestLoggerPackage(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		injector := do.New()
		do.ProvideValue(injector, &container.Options{LogFormat: "json", LogLevel: "warn"})
		container.LoggerPackage(injector)

		logger, err := do.Invoke[*zap.Logger](injector)
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zap.InfoLevel))
		assert.True(t, logger.Core().Enabled(zap.WarnLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		injector := do.New()
		do.ProvideValue(injector, &container.Options{LogLevel: "loud"})
		container.LoggerPackage(injector)

		_, err := do.Invoke[*zap.Logger](injector)
		assert.Error(t, err)
	})
}

func TestWindowStorePackage_UnknownBackend(t *testing.T) {
	opts := memoryOptions()
	opts.Backend = "etcd"

	injector := newInjector(t, opts)

	_, err := do.Invoke[container.WindowBackend](injector)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etcd")
}

func TestHTTPPackage_OperationMode(t *testing.T) {
	router := serve(t, newInjector(t, memoryOptions()))

	first := get(router, "/hello")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get(ratelimit.HeaderLimit))
	assert.Equal(t, "2", first.Header().Get(ratelimit.HeaderRemaining))

	second := get(router, "/hello")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "1", second.Header().Get(ratelimit.HeaderRemaining))

	third := get(router, "/hello")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "0", third.Header().Get(ratelimit.HeaderRemaining))

	health := get(router, "/health")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Empty(t, health.Header().Get(ratelimit.HeaderLimit), "health is not limited")

	reset := send(router, http.MethodDelete, "/ratelimit/keys/192.0.2.1", "")
	assert.Equal(t, http.StatusNotFound, reset.Code, "admin routes are off without a token")
	assert.Equal(t, http.StatusTooManyRequests, get(router, "/hello").Code)
}

func TestHTTPPackage_AdminToken(t *testing.T) {
	opts := memoryOptions()
	opts.AdminToken = "s3cret"

	router := serve(t, newInjector(t, opts))

	require.Equal(t, http.StatusOK, get(router, "/hello").Code)
	require.Equal(t, http.StatusOK, get(router, "/hello").Code)
	require.Equal(t, http.StatusTooManyRequests, get(router, "/hello").Code)

	refused := send(router, http.MethodDelete, "/ratelimit/keys/192.0.2.1", "")
	assert.Equal(t, http.StatusUnauthorized, refused.Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "/hello").Code, "refused reset keeps the window")

	stats := send(router, http.MethodGet, "/ratelimit/stats/192.0.2.1", "s3cret")
	assert.Equal(t, http.StatusNotFound, stats.Code, "stats are disabled without a stats store")

	reset := send(router, http.MethodDelete, "/ratelimit/keys/192.0.2.1", "s3cret")
	require.Equal(t, http.StatusOK, reset.Code)
	assert.Equal(t, http.StatusOK, get(router, "/hello").Code)
}

func TestHTTPPackage_RouterMode(t *testing.T) {
	opts := memoryOptions()
	opts.Mode = container.ModeRouter
	opts.MaxRequests = 1

	router := serve(t, newInjector(t, opts))

	first := get(router, "/hello")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get(ratelimit.HeaderRemaining))

	second := get(router, "/hello")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	unknown := get(router, "/missing")
	assert.Equal(t, http.StatusTooManyRequests, unknown.Code, "router mode limits every path")

	inspect := get(router, "/ratelimit/keys/192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, inspect.Code, "disabled admin paths are not exempt")

	opts.AdminToken = "s3cret"
	router = serve(t, newInjector(t, opts))

	require.Equal(t, http.StatusOK, get(router, "/hello").Code)
	require.Equal(t, http.StatusTooManyRequests, get(router, "/hello").Code)

	refused := send(router, http.MethodDelete, "/ratelimit/keys/192.0.2.1", "")
	assert.Equal(t, http.StatusUnauthorized, refused.Code, "exempt from the limit but still guarded")

	inspect = send(router, http.MethodGet, "/ratelimit/keys/192.0.2.1", "s3cret")
	assert.Equal(t, http.StatusOK, inspect.Code, "admin routes stay reachable")
}
