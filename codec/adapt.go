package codec

import (
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/snapcache/serial"
)

// Typed adapts a Serializer to Codec[V]. Decode asserts the deserialized
// value to V; a payload of another type fails with serial.ErrTypeMismatch.
// A nil payload value decodes to V's zero value.
type Typed[V any] struct {
	S Serializer
}

// TypeRegisterer is implemented by serializers that resolve types by name
// when reading, such as *serial.Pool.
type TypeRegisterer interface {
	RegisterType(t reflect.Type) error
}

// NewTyped registers V with s when s resolves types by name, so a process
// can read values of V it has never written.
func NewTyped[V any](s Serializer) Typed[V] {
	if r, ok := s.(TypeRegisterer); ok {
		if t := reflect.TypeFor[V](); t.Kind() != reflect.Interface {
			_ = r.RegisterType(t) // a V that cannot be written fails on Encode
		}
	}
	return Typed[V]{S: s}
}

func (c Typed[V]) Encode(v V) ([]byte, error) { return c.S.Serialize(v) }

func (c Typed[V]) Decode(b []byte) (V, error) {
	var zero V
	v, err := c.S.Deserialize(b)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(V)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %s", serial.ErrTypeMismatch, v, reflect.TypeFor[V]())
	}
	return out, nil
}

// Erase turns a typed codec into a Serializer so any of the value codecs in
// this package can be the inner layer of Compressed.
func Erase[V any](c Codec[V]) Serializer { return erased[V]{c: c} }

type erased[V any] struct{ c Codec[V] }

func (e erased[V]) Serialize(v any) ([]byte, error) {
	var tv V
	if v != nil {
		var ok bool
		if tv, ok = v.(V); !ok {
			return nil, fmt.Errorf("%w: got %T, want %s", serial.ErrTypeMismatch, v, reflect.TypeFor[V]())
		}
	}
	b, err := e.c.Encode(tv)
	if err != nil {
		return nil, serial.Wrap(serial.KindSerialization, "serialize", typeName(v), err)
	}
	return b, nil
}

func (e erased[V]) Deserialize(b []byte) (any, error) {
	v, err := e.c.Decode(b)
	if err != nil {
		return nil, serial.Wrap(serial.KindDeserialization, "deserialize", reflect.TypeFor[V]().String(), err)
	}
	return v, nil
}
