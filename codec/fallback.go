package codec

import (
	"github.com/unkn0wn-root/snapcache/serial"
	"github.com/vmihailenco/msgpack/v5"
)

// Fallback is the inner serializer Compressed uses when none is given. It
// carries no type tags, so it only round-trips self-describing values:
// nil, bools, numbers, strings, []byte, and maps and slices of those.
// Numbers come back as the narrowest msgpack type that holds them, slices
// as []any, maps as map[string]any and structs as map[string]any.
//
// Values that need their Go type back on read belong in a serial.Pool.
type Fallback struct{}

var _ Serializer = Fallback{}

func (Fallback) Serialize(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, serial.Wrap(serial.KindSerialization, "serialize", typeName(v), err)
	}
	return b, nil
}

func (Fallback) Deserialize(b []byte) (any, error) {
	var v any
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, serial.Wrap(serial.KindDeserialization, "deserialize", "", err)
	}
	return v, nil
}
