package cacheotel

import (
	"context"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidishook"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/snapcache"
)

// InstrumentClient wraps a rueidis client so every command records its
// duration and errors.
func InstrumentClient(c rueidis.Client, opts ...Option) (rueidis.Client, error) {
	conf := newConfig(opts...)
	conf.resolveMeter(snapcache.Version())

	hook, err := newInstrumentingHook(conf)
	if err != nil {
		return nil, err
	}
	return rueidishook.WithHook(c, hook), nil
}

type instrumentingHook struct {
	attrs       []attribute.KeyValue
	cmdDuration metric.Float64Histogram
	cmdErrors   metric.Int64Counter
}

var _ rueidishook.Hook = (*instrumentingHook)(nil)

func newInstrumentingHook(conf *config) (*instrumentingHook, error) {
	cmdDuration, err := conf.meter.Float64Histogram("snapcache.command.duration_seconds",
		metric.WithDescription("Duration of time in seconds to execute a command"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(conf.buckets...))
	if err != nil {
		return nil, err
	}

	cmdErrors, err := conf.meter.Int64Counter("snapcache.command.errors_total",
		metric.WithDescription("Count of errors during command execution"),
		metric.WithUnit("count"))
	if err != nil {
		return nil, err
	}

	return &instrumentingHook{
		attrs:       conf.attrs,
		cmdDuration: cmdDuration,
		cmdErrors:   cmdErrors,
	}, nil
}

func (i *instrumentingHook) record(ctx context.Context, cmd string, d time.Duration, err error) {
	attrs := make([]attribute.KeyValue, len(i.attrs)+1)
	copy(attrs, i.attrs)
	attrs[len(attrs)-1] = attribute.String("command", cmd)
	opt := metric.WithAttributes(attrs...)

	i.cmdDuration.Record(ctx, d.Seconds(), opt)
	if err != nil && !rueidis.IsRedisNil(err) {
		i.cmdErrors.Add(ctx, 1, opt)
	}
}

func (i *instrumentingHook) Do(client rueidis.Client, ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	name := cmd.Commands()[0]
	start := time.Now()
	resp := client.Do(ctx, cmd)
	i.record(ctx, name, time.Since(start), resp.Error())
	return resp
}

func (i *instrumentingHook) DoMulti(client rueidis.Client, ctx context.Context, multi ...rueidis.Completed) []rueidis.RedisResult {
	start := time.Now()
	resps := client.DoMulti(ctx, multi...)
	i.record(ctx, "pipeline", time.Since(start), firstErr(resps))
	return resps
}

func (i *instrumentingHook) DoCache(client rueidis.Client, ctx context.Context, cmd rueidis.Cacheable, ttl time.Duration) rueidis.RedisResult {
	name := cmd.Commands()[0]
	start := time.Now()
	resp := client.DoCache(ctx, cmd, ttl)
	i.record(ctx, name, time.Since(start), resp.Error())
	return resp
}

func (i *instrumentingHook) DoMultiCache(client rueidis.Client, ctx context.Context, multi ...rueidis.CacheableTTL) []rueidis.RedisResult {
	start := time.Now()
	resps := client.DoMultiCache(ctx, multi...)
	i.record(ctx, "pipeline", time.Since(start), firstErr(resps))
	return resps
}

func (i *instrumentingHook) Receive(client rueidis.Client, ctx context.Context, subscribe rueidis.Completed, fn func(msg rueidis.PubSubMessage)) error {
	return client.Receive(ctx, subscribe, fn)
}

func (i *instrumentingHook) DoStream(client rueidis.Client, ctx context.Context, cmd rueidis.Completed) rueidis.RedisResultStream {
	return client.DoStream(ctx, cmd)
}

func (i *instrumentingHook) DoMultiStream(client rueidis.Client, ctx context.Context, multi ...rueidis.Completed) rueidis.MultiRedisResultStream {
	return client.DoMultiStream(ctx, multi...)
}

func firstErr(resps []rueidis.RedisResult) error {
	for _, r := range resps {
		if err := r.Error(); err != nil && !rueidis.IsRedisNil(err) {
			return err
		}
	}
	return nil
}
