package zap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/snapcache"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Info("i", snapcache.Fields{"cache": "orders"})
	l.Warn("w", snapcache.Fields{"b": 2, "a": 1, "err": errors.New("boom")})
	l.Error("e", snapcache.Fields{})

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "snapcache", entries[0].LoggerName)
	assert.Equal(t, "orders", entries[1].ContextMap()["cache"])

	w := entries[2]
	assert.Equal(t, zapcore.WarnLevel, w.Level)
	require.Len(t, w.Context, 3)
	assert.Equal(t, "a", w.Context[0].Key)
	assert.Equal(t, "b", w.Context[1].Key)
	assert.Equal(t, "boom", w.ContextMap()["err"])

	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}
