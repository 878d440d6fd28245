// Package serial writes arbitrary Go object graphs to compact tagged bytes
// and reads them back.
//
// The first byte sequence of every payload names the dynamic type of the
// value, so Deserialize returns a value of the type that was written without
// a type hint from the caller. Shared and cyclic references are written
// once and restored with their identity intact.
//
// An Instance is single-threaded. Concurrent callers go through a Pool:
//
//	p := serial.NewPool()
//	b, err := p.Serialize(order)
//	v, err := p.Deserialize(b)       // v is the same type as order
//	o, err := serial.Decode[*Order](p, b)
//
// Only exported struct fields are written. A field tagged `serial:"-"` is
// skipped and `serial:"name"` writes it under another name. Types with
// MarshalBinary and UnmarshalBinary methods are written through them.
package serial
