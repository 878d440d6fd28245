// Package cacheotel records snapcache codec and Redis command metrics
// through OpenTelemetry.
//
//	obs, err := cacheotel.NewObserver(cacheotel.WithMeterProvider(mp))
//	c := codec.NewCompressed(codec.WithInner(serial.Default()), codec.WithObserver(obs))
package cacheotel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/codec"
)

// Observer is a codec.Observer that records serialization and compression
// durations, errors and the compression ratio.
type Observer struct {
	attrs               []attribute.KeyValue
	serializationTime   metric.Float64Histogram
	serializationErrors metric.Int64Counter
	compressionTime     metric.Float64Histogram
	compressionErrors   metric.Int64Counter
	compressionRatio    metric.Float64Histogram
}

var _ codec.Observer = (*Observer)(nil)

func NewObserver(opts ...Option) (*Observer, error) {
	conf := newConfig(opts...)
	meter := conf.resolveMeter(snapcache.Version())

	serializationTime, err := meter.Float64Histogram("snapcache.serialization_time_seconds",
		metric.WithDescription("Duration of time in seconds to serialize/deserialize values"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(conf.buckets...))
	if err != nil {
		return nil, err
	}

	serializationErrors, err := meter.Int64Counter("snapcache.serialization_errors_total",
		metric.WithDescription("Count of errors during serialization and deserialization"),
		metric.WithUnit("count"))
	if err != nil {
		return nil, err
	}

	compressionTime, err := meter.Float64Histogram("snapcache.compression_time_seconds",
		metric.WithDescription("Duration of time in seconds to compress/decompress data"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(conf.buckets...))
	if err != nil {
		return nil, err
	}

	compressionErrors, err := meter.Int64Counter("snapcache.compression_errors_total",
		metric.WithDescription("Count of errors during compression/decompression"),
		metric.WithUnit("count"))
	if err != nil {
		return nil, err
	}

	compressionRatio, err := meter.Float64Histogram("snapcache.compression_ratio",
		metric.WithDescription("Compressed size divided by serialized size"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(conf.ratioBuckets...))
	if err != nil {
		return nil, err
	}

	return &Observer{
		attrs:               conf.attrs,
		serializationTime:   serializationTime,
		serializationErrors: serializationErrors,
		compressionTime:     compressionTime,
		compressionErrors:   compressionErrors,
		compressionRatio:    compressionRatio,
	}, nil
}

func (o *Observer) ObserveSerialize(op string, d time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(o.withOp(op)...)

	o.serializationTime.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		o.serializationErrors.Add(ctx, 1, attrs)
	}
}

func (o *Observer) ObserveCompress(op string, d time.Duration, in, out int, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(o.withOp(op)...)

	o.compressionTime.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		o.compressionErrors.Add(ctx, 1, attrs)
		return
	}
	if op == "compress" && in > 0 {
		o.compressionRatio.Record(ctx, float64(out)/float64(in), metric.WithAttributes(o.attrs...))
	}
}

func (o *Observer) withOp(op string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(o.attrs)+1)
	attrs = append(attrs, o.attrs...)
	return append(attrs, attribute.String("operation", op))
}
