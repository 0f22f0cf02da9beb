package container

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := newZapLoggerAdapter(zap.New(core)).With(watermill.LogFields{"topic": "ratelimit.decisions"})

	adapter.Info("subscribed", watermill.LogFields{"group": "ratelimit-analytics"})
	adapter.Trace("message read", nil)
	adapter.Error("publish failed", errors.New("boom"), nil)

	entries := logs.AllUntimed()
	assert.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "watermill", entries[0].LoggerName)
	assert.Equal(t, "ratelimit.decisions", entries[0].ContextMap()["topic"])
	assert.Equal(t, "ratelimit-analytics", entries[0].ContextMap()["group"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}
