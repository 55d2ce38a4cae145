package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFieldsReachZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelDebug)

	l.With(String("component", "test")).Info("tick",
		Uint64("tick", 7),
		Float64("dt", 0.5),
		Duration("took", time.Millisecond),
		Error(errors.New("boom")),
		Bool("binary", true),
		Time("at", time.Unix(10, 0)),
		ErrorWithKey("shutdown_error", errors.New("late")),
	)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "test", ctx["component"])
		assert.Equal(t, uint64(7), ctx["tick"])
		assert.Equal(t, 0.5, ctx["dt"])
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, true, ctx["binary"])
		at, ok := ctx["at"].(time.Time)
		assert.True(t, ok)
		assert.True(t, at.Equal(time.Unix(10, 0)))
		assert.Equal(t, "late", ctx["shutdown_error"])
	}
}

func TestLevelGate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelWarn)

	l.Log(LevelInfo, "dropped")
	l.Log(LevelError, "kept")
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, LevelWarn, l.GetLevel())

	l.SetLevel(LevelDebug)
	l.Log(LevelDebug, "kept too")
	assert.Equal(t, 2, logs.Len())
}

func TestLevelMethodsFollowSetLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), LevelError)

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("dropped")
	l.Error("kept")
	assert.Equal(t, 1, logs.Len())

	l.SetLevel(LevelInfo)
	l.Debug("dropped")
	l.Info("kept")
	l.With(String("component", "child")).Warn("kept")
	assert.Equal(t, 3, logs.Len())
}
