package codec

import (
	"errors"
	"reflect"
	"time"

	"github.com/unkn0wn-root/snapcache/compress"
	"github.com/unkn0wn-root/snapcache/serial"
)

// Compressed is the value codec installed for every cache: it serializes
// with an inner Serializer and compresses the result.
//
//	Serialize:   v -> inner.Serialize -> Compress -> blob
//	Deserialize: blob -> Decompress -> inner.Deserialize -> v
//
// The blob carries nothing beyond what the compressor embeds. Failures are
// *serial.Error: KindCompression when the blob is not a valid compressed
// stream, the inner step's kind otherwise. Compressed knows nothing about
// the inner serializer and is safe for concurrent use when the inner
// serializer is.
type Compressed struct {
	inner Serializer
	comp  compress.Compressor
	obs   Observer
}

var _ Serializer = (*Compressed)(nil)

type CompressedOption func(*Compressed)

// WithInner sets the inner serializer. Without it Compressed uses Fallback.
func WithInner(s Serializer) CompressedOption {
	return func(c *Compressed) {
		if s != nil {
			c.inner = s
		}
	}
}

// WithCompressor sets the block compressor. Without it Compressed uses
// compress.Snappy.
func WithCompressor(comp compress.Compressor) CompressedOption {
	return func(c *Compressed) {
		if comp != nil {
			c.comp = comp
		}
	}
}

func WithObserver(o Observer) CompressedOption {
	return func(c *Compressed) {
		if o != nil {
			c.obs = o
		}
	}
}

func NewCompressed(opts ...CompressedOption) *Compressed {
	c := &Compressed{
		inner: Fallback{},
		comp:  compress.Default(),
		obs:   NopObserver{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RegisterType forwards to the inner serializer when it resolves types by
// name.
func (c *Compressed) RegisterType(t reflect.Type) error {
	if r, ok := c.inner.(TypeRegisterer); ok {
		return r.RegisterType(t)
	}
	return nil
}

// Compressor reports the configured compressor.
func (c *Compressed) Compressor() compress.Compressor { return c.comp }

func (c *Compressed) Serialize(v any) ([]byte, error) {
	start := time.Now()
	raw, err := c.inner.Serialize(v)
	c.obs.ObserveSerialize("serialize", time.Since(start), err)
	if err != nil {
		return nil, serial.Wrap(serial.KindSerialization, "serialize", typeName(v), err)
	}

	start = time.Now()
	out, err := c.comp.Compress(raw)
	c.obs.ObserveCompress("compress", time.Since(start), len(raw), len(out), err)
	if err != nil {
		return nil, serial.Wrap(serial.KindCompression, "compress", c.comp.Name(), err)
	}
	return out, nil
}

func (c *Compressed) Deserialize(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, serial.Wrap(serial.KindCompression, "decompress", c.comp.Name(), errEmpty)
	}
	start := time.Now()
	raw, err := c.comp.Decompress(b)
	c.obs.ObserveCompress("decompress", time.Since(start), len(b), len(raw), err)
	if err != nil {
		return nil, serial.Wrap(serial.KindCompression, "decompress", c.comp.Name(), err)
	}

	start = time.Now()
	v, err := c.inner.Deserialize(raw)
	c.obs.ObserveSerialize("deserialize", time.Since(start), err)
	if err != nil {
		return nil, serial.Wrap(serial.KindDeserialization, "deserialize", "", err)
	}
	return v, nil
}

var errEmpty = errors.New("empty input")

func typeName(v any) string {
	if v == nil {
		return ""
	}
	return reflect.TypeOf(v).String()
}
