package logger

import (
	"context"
	"testing"

	kratoslog "github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	tracecontext "headless-pro/pkg/context"
)

func TestLoggerAddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core))

	ctx := tracecontext.WithRequestID(context.Background(), "req-1")
	log.Info(ctx, "search served", F("total", 3))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.EqualValues(t, 3, fields["total"])
}

func TestKratosLoggerBridge(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bridge := NewKratosLogger(NewZapLogger(zap.New(core)))

	require.NoError(t, bridge.Log(kratoslog.LevelError, "msg", "hook failed", "name", "servers"))
	require.NoError(t, bridge.Log(kratoslog.LevelInfo))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hook failed", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "servers", entries[0].ContextMap()["name"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
