package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do"
	"github.com/serroba/window-limiter/internal/analytics"
	"github.com/serroba/window-limiter/internal/container"
	"go.uber.org/zap"
)

// The consumer aggregates decision events published by the server.
// It is configured from the environment; see getEnv calls below.
func main() {
	opts := &container.Options{
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		LogFormat:  getEnv("LOG_FORMAT", "console"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		StatsStore: getEnv("STATS_STORE", container.StatsNoop),
	}

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)

	group, err := do.Invoke[*analytics.ConsumerGroup](injector)
	if err != nil {
		logger.Fatal("failed to build consumer group", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer group", zap.Error(err))
	}

	logger.Info("consuming decision events",
		zap.String("topic", analytics.TopicDecisions),
		zap.String("statsStore", opts.StatsStore),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	_ = logger.Sync()
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return defaultValue
}
