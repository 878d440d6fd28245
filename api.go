package snapcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/snapcache/codec"
	pr "github.com/unkn0wn-root/snapcache/provider"
)

// SetCostFunc computes the cost passed to Provider.Set for cost-aware stores
// such as ristretto.
type SetCostFunc func(key string, raw []byte) int64

// Cache is one named cache over a byte store. Every value goes through the
// cache's Codec; by default that is the compressed graph serializer, so any
// Go value (including cyclic graphs) can be stored and comes back with its
// concrete type.
type Cache[V any] interface {
	Name() string
	// TTL is the entry lifetime used by Set.
	TTL() time.Duration

	// Get returns (v, true, nil) on hit and (zero, false, nil) on miss. A
	// stored value that cannot be decoded fails the call with a *CodecError
	// wrapping the *serial.Error; no partial or default value is returned.
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	Set(ctx context.Context, key string, value V) error
	// SetWithTTL overrides the cache TTL for one entry. ttl == 0 uses TTL(),
	// ttl < 0 stores without expiry.
	SetWithTTL(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	Enabled() bool
	Close(context.Context) error
}

// Options configure a Cache. Only Provider is required.
type Options[V any] struct {
	// Required
	Provider pr.Provider

	Name      string         // reported in logs and hooks; "" => "default"
	Codec     codec.Codec[V] // nil => Typed over Compressed(serial pool, snappy)
	TTL       time.Duration  // 0 => 10m; < 0 => no expiry
	KeyPrefix string         // prepended to every key; "" => keys are stored as given

	Logger         Logger      // if nil, NopLogger is used
	Hooks          Hooks       // if nil, NopHooks is used
	ComputeSetCost SetCostFunc // default 1

	AllowNil    bool // store nil values instead of rejecting them with ErrNilValue
	DropCorrupt bool // delete entries that fail to decode (the Get still fails)
	Disabled    bool // default false (enabled)
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
