// Package cacheprom records snapcache codec metrics as Prometheus
// collectors.
//
//	obs, err := cacheprom.NewObserver(prometheus.DefaultRegisterer)
//	c := codec.NewCompressed(codec.WithInner(serial.Default()), codec.WithObserver(obs))
package cacheprom

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/snapcache/codec"
)

type config struct {
	namespace    string
	constLabels  prometheus.Labels
	buckets      []float64
	ratioBuckets []float64
}

type Option func(*config)

// WithNamespace sets the metric name prefix ("snapcache" by default).
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

func WithConstLabels(l prometheus.Labels) Option {
	return func(c *config) { c.constLabels = l }
}

// WithBuckets sets the duration histogram buckets, in seconds.
func WithBuckets(b []float64) Option {
	return func(c *config) { c.buckets = b }
}

func WithRatioBuckets(b []float64) Option {
	return func(c *config) { c.ratioBuckets = b }
}

// Observer is a codec.Observer backed by Prometheus collectors. Durations
// and errors are labelled by step ("serialization" or "compression") and
// operation.
type Observer struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	ratio    prometheus.Histogram
}

var _ codec.Observer = (*Observer)(nil)

// NewObserver builds the collectors and registers them on reg. A collector
// already registered by an earlier Observer with the same options is
// reused.
func NewObserver(reg prometheus.Registerer, opts ...Option) (*Observer, error) {
	conf := &config{
		namespace:    "snapcache",
		buckets:      prometheus.ExponentialBuckets(0.0001, 2, 12),
		ratioBuckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	}
	for _, o := range opts {
		o(conf)
	}

	o := &Observer{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   conf.namespace,
			Name:        "codec_duration_seconds",
			Help:        "Duration of time in seconds to serialize/deserialize and compress/decompress values",
			ConstLabels: conf.constLabels,
			Buckets:     conf.buckets,
		}, []string{"step", "operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   conf.namespace,
			Name:        "codec_errors_total",
			Help:        "Count of codec failures",
			ConstLabels: conf.constLabels,
		}, []string{"step", "operation"}),
		ratio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   conf.namespace,
			Name:        "compression_ratio",
			Help:        "Compressed size divided by serialized size",
			ConstLabels: conf.constLabels,
			Buckets:     conf.ratioBuckets,
		}),
	}

	var err error
	if o.duration, err = register(reg, o.duration); err != nil {
		return nil, err
	}
	if o.errors, err = register(reg, o.errors); err != nil {
		return nil, err
	}
	if o.ratio, err = register(reg, o.ratio); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (o *Observer) ObserveSerialize(op string, d time.Duration, err error) {
	o.duration.WithLabelValues("serialization", op).Observe(d.Seconds())
	if err != nil {
		o.errors.WithLabelValues("serialization", op).Inc()
	}
}

func (o *Observer) ObserveCompress(op string, d time.Duration, in, out int, err error) {
	o.duration.WithLabelValues("compression", op).Observe(d.Seconds())
	if err != nil {
		o.errors.WithLabelValues("compression", op).Inc()
		return
	}
	if op == "compress" && in > 0 {
		o.ratio.Observe(float64(out) / float64(in))
	}
}
