package codec

import "github.com/unkn0wn-root/snapcache/serial"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Serializer is the type-erased form used as the inner layer of Compressed.
// Deserialize returns a value of the type that was serialized, so a
// Serializer must either embed type information in its output (serial.Pool)
// or restrict itself to self-describing values (Fallback).
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(b []byte) (any, error)
}

var _ Serializer = (*serial.Pool)(nil)
