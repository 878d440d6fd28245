package cacheotel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const name = "github.com/unkn0wn-root/snapcache/metrics/otel"

type config struct {
	dbSystem      string
	attrs         []attribute.KeyValue
	meterProvider metric.MeterProvider
	meter         metric.Meter
	buckets       []float64
	ratioBuckets  []float64
}

func newConfig(opts ...Option) *config {
	conf := &config{
		dbSystem:      "redis",
		attrs:         []attribute.KeyValue{},
		meterProvider: otel.GetMeterProvider(),
		buckets:       ExponentialBuckets(0.0001, 2, 12), // 100µs .. ~205ms
		ratioBuckets:  LinearBuckets(0.1, 0.1, 10),       // 0.1 .. 1.0
	}

	for _, opt := range opts {
		opt.apply(conf)
	}

	conf.attrs = append(conf.attrs, attribute.String("db.system", conf.dbSystem))
	return conf
}

type Option interface {
	apply(conf *config)
}

type option func(conf *config)

func (fn option) apply(conf *config) {
	fn(conf)
}

func WithAttributes(attrs ...attribute.KeyValue) Option {
	return option(func(conf *config) {
		conf.attrs = attrs
	})
}

func WithDBSystem(system string) Option {
	return option(func(conf *config) {
		conf.dbSystem = system
	})
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return option(func(conf *config) {
		conf.meterProvider = mp
	})
}

// WithMeter skips the meter provider and records on m directly.
func WithMeter(m metric.Meter) Option {
	return option(func(conf *config) {
		conf.meter = m
	})
}

// WithExplicitBucketBoundaries sets the duration histogram buckets, in
// seconds.
func WithExplicitBucketBoundaries(boundaries []float64) Option {
	return option(func(conf *config) {
		conf.buckets = boundaries
	})
}

// WithRatioBucketBoundaries sets the compression ratio histogram buckets.
func WithRatioBucketBoundaries(boundaries []float64) Option {
	return option(func(conf *config) {
		conf.ratioBuckets = boundaries
	})
}

func (conf *config) resolveMeter(version string) metric.Meter {
	if conf.meter == nil {
		conf.meter = conf.meterProvider.Meter(name, metric.WithInstrumentationVersion("semver:"+version))
	}
	return conf.meter
}
