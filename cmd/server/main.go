package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/window-limiter/internal/container"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.WindowStorePackage(injector)
	container.RateLimitPackage(injector)
	container.AnalyticsPackage(injector)
	container.StatsPackage(injector)
	container.HealthPackage(injector)
	container.HTTPPackage(injector)
}

// newServer resolves the router, registering every operation on the way.
func newServer(injector *do.Injector, port int) (*http.Server, error) {
	router, err := do.Invoke[*chi.Mux](injector)
	if err != nil {
		return nil, err
	}

	if _, err := do.Invoke[huma.API](injector); err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}, nil
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		var server *http.Server

		hooks.OnStart(func() {
			logger := do.MustInvoke[*zap.Logger](injector)

			var err error

			server, err = newServer(injector, options.Port)
			if err != nil {
				logger.Fatal("failed to build server", zap.Error(err))
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("backend", options.Backend),
				zap.String("mode", options.Mode),
				zap.String("analytics", options.Analytics),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger := do.MustInvoke[*zap.Logger](injector)
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			// Stop accepting requests before the engine and its store go away.
			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
			_ = logger.Sync()
		})
	})

	cli.Run()
}
