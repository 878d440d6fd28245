package cacheprom

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/snapcache/codec"
	"github.com/unkn0wn-root/snapcache/compress"
	"github.com/unkn0wn-root/snapcache/serial"
)

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewObserver(reg)
	require.NoError(t, err)

	c := codec.NewCompressed(
		codec.WithInner(serial.NewPool()),
		codec.WithCompressor(compress.Zstd()),
		codec.WithObserver(obs),
	)

	b, err := c.Serialize([]string{"alpha", "alpha", "alpha", "alpha", "alpha", "alpha"})
	require.NoError(t, err)
	_, err = c.Deserialize(b)
	require.NoError(t, err)
	_, err = c.Deserialize([]byte{1, 2, 3})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.errors.WithLabelValues("compression", "decompress")))
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.errors.WithLabelValues("serialization", "serialize")))
	assert.Equal(t, 4, testutil.CollectAndCount(obs.duration))

	expected := `
# HELP snapcache_codec_errors_total Count of codec failures
# TYPE snapcache_codec_errors_total counter
snapcache_codec_errors_total{operation="decompress",step="compression"} 1
snapcache_codec_errors_total{operation="serialize",step="serialization"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "snapcache_codec_errors_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(obs.ratio))
}

func TestObserverReRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewObserver(reg, WithNamespace("app"), WithConstLabels(prometheus.Labels{"cache": "x"}))
	require.NoError(t, err)
	b, err := NewObserver(reg, WithNamespace("app"), WithConstLabels(prometheus.Labels{"cache": "x"}))
	require.NoError(t, err)

	a.ObserveSerialize("serialize", 0, assert.AnError)
	b.ObserveSerialize("serialize", 0, assert.AnError)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.errors.WithLabelValues("serialization", "serialize")))
}
