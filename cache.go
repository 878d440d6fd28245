package snapcache

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/unkn0wn-root/snapcache/codec"
	pr "github.com/unkn0wn-root/snapcache/provider"
	"github.com/unkn0wn-root/snapcache/serial"
)

type cache[V any] struct {
	name           string
	provider       pr.Provider
	codec          codec.Codec[V]
	log            Logger
	hooks          Hooks
	enabled        bool
	ttl            time.Duration
	prefix         string
	allowNil       bool
	dropCorrupt    bool
	computeSetCost SetCostFunc
}

var _ Cache[struct{}] = (*cache[struct{}])(nil)

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, errors.New("snapcache: provider is required")
	}

	c := &cache[V]{
		name:        coalesce(opts.Name, defaultName),
		provider:    opts.Provider,
		codec:       opts.Codec,
		enabled:     !opts.Disabled,
		prefix:      opts.KeyPrefix,
		allowNil:    opts.AllowNil,
		dropCorrupt: opts.DropCorrupt,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.ttl = coalesce(opts.TTL, defaultTTL)
	if c.codec == nil {
		c.codec = DefaultCodec[V]()
	}
	if opts.ComputeSetCost != nil {
		c.computeSetCost = opts.ComputeSetCost
	} else {
		c.computeSetCost = func(string, []byte) int64 { return 1 }
	}
	return c, nil
}

// DefaultCodec is the codec a Cache uses when Options.Codec is nil: the
// default serial pool under Snappy compression.
func DefaultCodec[V any]() codec.Codec[V] {
	return codec.NewTyped[V](codec.NewCompressed(codec.WithInner(serial.Default())))
}

func (c *cache[V]) Name() string       { return c.name }
func (c *cache[V]) TTL() time.Duration { return c.ttl }
func (c *cache[V]) Enabled() bool      { return c.enabled }

func (c *cache[V]) Close(ctx context.Context) error {
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !c.enabled {
		return zero, false, nil
	}
	k := c.storageKey(key)
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		c.hooks.ProviderError(c.name, "get", err)
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		c.hooks.CodecFailure(c.name, k, "decode", err)
		c.log.Warn("value decode failed", Fields{"cache": c.name, "key": key, "kind": serial.KindOf(err).String(), "err": err})
		if c.dropCorrupt {
			if derr := c.provider.Del(ctx, k); derr != nil {
				c.hooks.ProviderError(c.name, "del", derr)
			} else {
				c.hooks.CorruptDropped(c.name, k)
			}
		}
		return zero, false, &CodecError{Cache: c.name, Key: key, Op: "decode", Err: err}
	}
	return v, true, nil
}

func (c *cache[V]) Set(ctx context.Context, key string, value V) error {
	return c.SetWithTTL(ctx, key, value, 0)
}

func (c *cache[V]) SetWithTTL(ctx context.Context, key string, value V, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	if !c.allowNil && isNil(value) {
		return ErrNilValue
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	if ttl < 0 {
		ttl = 0 // providers: no expiry
	}

	k := c.storageKey(key)
	raw, err := c.codec.Encode(value)
	if err != nil {
		c.hooks.CodecFailure(c.name, k, "encode", err)
		return &CodecError{Cache: c.name, Key: key, Op: "encode", Err: err}
	}
	ok, err := c.provider.Set(ctx, k, raw, c.computeSetCost(k, raw), ttl)
	if err != nil {
		c.hooks.ProviderError(c.name, "set", err)
		return err
	}
	if !ok {
		c.hooks.ProviderSetRejected(c.name, k)
		c.log.Debug("Set rejected by provider (pressure)", Fields{"cache": c.name, "key": key})
	}
	return nil
}

func (c *cache[V]) Delete(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	if err := c.provider.Del(ctx, c.storageKey(key)); err != nil {
		c.hooks.ProviderError(c.name, "del", err)
		return err
	}
	return nil
}

func (c *cache[V]) storageKey(userKey string) string {
	return c.prefix + userKey
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
