// Package snapcache is a typed cache over a byte store (usually a Redis
// cluster) whose values are stored as compressed, self-describing binary
// blobs.
//
// Components:
//   - Provider: byte store with TTL (Redis, Ristretto, BigCache).
//   - Codec[V]: V <-> []byte. The default is the graph serializer in package
//     serial wrapped by codec.Compressed (Snappy), so values keep their
//     concrete Go types, shared pointers and cycles across the store.
//   - config.Config: node list, redirect limit and TTLs; Table builds one
//     Cache per configured name from it.
//
// Pipeline:
//
//	Set: value -> serial.Pool.Serialize -> compress -> Provider.Set
//	Get: Provider.Get -> decompress -> serial.Pool.Deserialize -> value
//
// A stored value that fails to decode is never replaced by a default: Get
// returns a *CodecError wrapping the *serial.Error, so callers can tell
// errors.Is(err, serial.ErrCompression) from
// errors.Is(err, serial.ErrDeserialization).
//
// Usage:
//
//	cfg, _ := config.Load("snapcache.yaml")
//	client, _ := cluster.NewClient(cfg)
//	store, _ := redis.New(redis.Config{Client: client, CloseClient: true})
//	tbl, _ := snapcache.NewTable[any](cfg, snapcache.Options[any]{Provider: store})
//	sessions, _ := tbl.Cache("sessions")
//	_ = sessions.Set(ctx, "s:42", session)
package snapcache
