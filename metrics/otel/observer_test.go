package cacheotel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/unkn0wn-root/snapcache/codec"
	"github.com/unkn0wn-root/snapcache/serial"
)

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func histCount(t *testing.T, m metricdata.Metrics, op string) uint64 {
	t.Helper()
	h, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "%s is %T", m.Name, m.Data)
	var n uint64
	for _, dp := range h.DataPoints {
		if v, ok := dp.Attributes.Value("operation"); op == "" || (ok && v.AsString() == op) {
			n += dp.Count
		}
	}
	return n
}

func counterSum(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	s, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is %T", m.Name, m.Data)
	var n int64
	for _, dp := range s.DataPoints {
		n += dp.Value
	}
	return n
}

func TestObserverWithCompressed(t *testing.T) {
	reader, mp := newReader()
	obs, err := NewObserver(WithMeterProvider(mp), WithAttributes(attribute.String("cache", "orders")))
	require.NoError(t, err)

	c := codec.NewCompressed(codec.WithInner(serial.NewPool()), codec.WithObserver(obs))

	b, err := c.Serialize(map[string]any{"text": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})
	require.NoError(t, err)
	_, err = c.Deserialize(b)
	require.NoError(t, err)
	_, err = c.Deserialize([]byte("not snappy at all"))
	require.Error(t, err)

	got := collect(t, reader)

	assert.Equal(t, uint64(1), histCount(t, got["snapcache.serialization_time_seconds"], "serialize"))
	assert.Equal(t, uint64(1), histCount(t, got["snapcache.serialization_time_seconds"], "deserialize"))
	assert.Equal(t, uint64(1), histCount(t, got["snapcache.compression_time_seconds"], "compress"))
	assert.Equal(t, uint64(2), histCount(t, got["snapcache.compression_time_seconds"], "decompress"))
	assert.Equal(t, int64(1), counterSum(t, got["snapcache.compression_errors_total"]))
	assert.Equal(t, uint64(1), histCount(t, got["snapcache.compression_ratio"], ""))

	ratio := got["snapcache.compression_ratio"].Data.(metricdata.Histogram[float64])
	dp := ratio.DataPoints[0]
	assert.Less(t, dp.Sum, 1.0)
	v, ok := dp.Attributes.Value("cache")
	assert.True(t, ok)
	assert.Equal(t, "orders", v.AsString())

	_, hasSerErrs := got["snapcache.serialization_errors_total"]
	assert.False(t, hasSerErrs)
}

func TestObserverSerializeError(t *testing.T) {
	reader, mp := newReader()
	obs, err := NewObserver(WithMeterProvider(mp))
	require.NoError(t, err)

	obs.ObserveSerialize("serialize", time.Millisecond, errors.New("boom"))
	obs.ObserveCompress("compress", time.Millisecond, 0, 0, nil)

	got := collect(t, reader)
	assert.Equal(t, int64(1), counterSum(t, got["snapcache.serialization_errors_total"]))
	_, hasRatio := got["snapcache.compression_ratio"]
	assert.False(t, hasRatio, "empty input must not record a ratio")
}

func TestBuckets(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 4, 8}, ExponentialBuckets(1, 2, 4))
	assert.InDeltaSlice(t, []float64{0.5, 1, 1.5}, LinearBuckets(0.5, 0.5, 3), 1e-9)
	assert.Panics(t, func() { ExponentialBuckets(0, 2, 3) })
	assert.Panics(t, func() { LinearBuckets(0, 0, 3) })
}

func TestInstrumentClient(t *testing.T) {
	m := miniredis.RunT(t)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:       []string{m.Addr()},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	require.NoError(t, err)
	defer client.Close()

	reader, mp := newReader()
	client, err = InstrumentClient(client, WithMeterProvider(mp))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Do(ctx, client.B().Set().Key("k").Value("v").Build()).Error())
	_, err = client.Do(ctx, client.B().Get().Key("missing").Build()).ToString()
	assert.True(t, rueidis.IsRedisNil(err))
	err = client.Do(ctx, client.B().Incr().Key("k").Build()).Error()
	assert.Error(t, err)

	got := collect(t, reader)
	dur := got["snapcache.command.duration_seconds"].Data.(metricdata.Histogram[float64])
	var n uint64
	for _, dp := range dur.DataPoints {
		n += dp.Count
	}
	assert.Equal(t, uint64(3), n)
	assert.Equal(t, int64(1), counterSum(t, got["snapcache.command.errors_total"]))
}
