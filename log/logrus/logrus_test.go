package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/snapcache"
)

func TestLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Debug("d", nil)
	l.Warn("w", snapcache.Fields{"cache": "orders", "err": errors.New("boom")})

	entries := hook.AllEntries()
	require.Len(t, entries, 2)

	assert.Equal(t, logrus.DebugLevel, entries[0].Level)
	assert.Equal(t, "snapcache", entries[0].Data["component"])

	w := entries[1]
	assert.Equal(t, logrus.WarnLevel, w.Level)
	assert.Equal(t, "w", w.Message)
	assert.Equal(t, "orders", w.Data["cache"])
	assert.EqualError(t, w.Data[logrus.ErrorKey].(error), "boom")
}
