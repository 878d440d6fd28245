package serial

import (
	"bytes"
	"encoding"
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"
)

const defaultMaxDepth = 512

var (
	binaryMarshalerType   = reflect.TypeFor[encoding.BinaryMarshaler]()
	binaryUnmarshalerType = reflect.TypeFor[encoding.BinaryUnmarshaler]()
)

// refKey identifies an object for reference tracking. Slices also key on
// length so two views of one backing array stay distinct.
type refKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// Instance writes and reads tagged object graphs. It is stateful and not
// safe for concurrent use; borrow one from a Pool instead of sharing it.
//
// Stream layout (msgpack items):
//
//	value      = typeslot body
//	typeslot   = 0 (nil) | 1 name (new type) | id+2 (seen type)
//	refslot    = 0 (nil) | 1 body (new object) | id+2 (seen object)
//	struct     = maplen { name typeslot field }
//	interface  = typeslot body
//
// Pointers, maps and slices carry a refslot so shared and cyclic objects are
// written once.
type Instance struct {
	reg      *Registry
	maxDepth int

	buf bytes.Buffer
	rd  bytes.Reader
	enc *msgpack.Encoder
	dec *msgpack.Decoder

	depth int

	// write
	typeIDs  map[reflect.Type]int
	refIDs   map[refKey]int
	refCount int

	// read
	types []reflect.Type
	refs  []reflect.Value

	// copy
	copies map[refKey]reflect.Value

	inUse bool
}

// NewInstance returns an Instance bound to reg (DefaultRegistry when nil).
func NewInstance(reg *Registry) *Instance {
	return newInstance(reg, defaultMaxDepth)
}

func newInstance(reg *Registry, maxDepth int) *Instance {
	if reg == nil {
		reg = defaultRegistry
	}
	in := &Instance{
		reg:      reg,
		maxDepth: maxDepth,
		typeIDs:  make(map[reflect.Type]int),
		refIDs:   make(map[refKey]int),
		copies:   make(map[refKey]reflect.Value),
	}
	in.enc = msgpack.NewEncoder(&in.buf)
	in.dec = msgpack.NewDecoder(&in.rd)
	return in
}

// reset drops all per-operation state. It keeps the buffer's capacity.
func (in *Instance) reset() {
	in.buf.Reset()
	in.rd.Reset(nil)
	in.depth = 0
	clear(in.typeIDs)
	clear(in.refIDs)
	in.refCount = 0
	clear(in.types)
	in.types = in.types[:0]
	clear(in.refs)
	in.refs = in.refs[:0]
	clear(in.copies)
}

// Serialize writes v's type tag followed by its object graph.
func (in *Instance) Serialize(v any) (out []byte, err error) {
	in.reset()
	defer in.reset()
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
		err = Wrap(KindSerialization, "serialize", typeString(v), err)
	}()

	in.enc.Reset(&in.buf)
	if err := in.writeAny(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	out = make([]byte, in.buf.Len())
	copy(out, in.buf.Bytes())
	return out, nil
}

// Deserialize reads a value written by Serialize. The result has the same
// dynamic type the value had when it was written; nil stays nil.
func (in *Instance) Deserialize(b []byte) (v any, err error) {
	in.reset()
	defer in.reset()
	var typ string
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("panic: %v", r)
		}
		err = Wrap(KindDeserialization, "deserialize", typ, err)
	}()

	if len(b) == 0 {
		return nil, malformed("empty input")
	}
	in.rd.Reset(b)
	in.dec.Reset(&in.rd)
	rv, err := in.readAny()
	if rv.IsValid() {
		typ = rv.Type().String()
	}
	if err != nil {
		return nil, err
	}
	if n := in.rd.Len(); n != 0 {
		return nil, malformed("%d trailing bytes", n)
	}
	if !rv.IsValid() {
		return nil, nil
	}
	return rv.Interface(), nil
}

// Copy returns a deep copy of v. Objects reachable more than once from v are
// copied once, so shared references and cycles are preserved in the copy.
// Unexported struct fields are copied shallowly.
func (in *Instance) Copy(v any) (out any, err error) {
	in.reset()
	defer in.reset()
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
		err = Wrap(KindSerialization, "copy", typeString(v), err)
	}()

	if v == nil {
		return nil, nil
	}
	dst, err := in.copyValue(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	return dst.Interface(), nil
}

func (in *Instance) enter() error {
	in.depth++
	if in.depth > in.maxDepth {
		return fmt.Errorf("%w (%d)", ErrMaxDepth, in.maxDepth)
	}
	return nil
}

func (in *Instance) leave() { in.depth-- }

func typeString(v any) string {
	if v == nil {
		return ""
	}
	return reflect.TypeOf(v).String()
}

var binaryTypes = xsync.NewMapOf[reflect.Type, bool]()

// usesBinary reports whether t is written through its BinaryMarshaler. A
// struct that only gets the methods from an embedded field is written field
// by field, otherwise its other fields would be lost. Reflection cannot tell
// a promoted method from one the struct redeclares, so a struct embedding a
// marshaler is always written field by field.
func usesBinary(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return false
	}
	if ok, found := binaryTypes.Load(t); found {
		return ok
	}
	pt := reflect.PointerTo(t)
	ok := pt.Implements(binaryMarshalerType) && pt.Implements(binaryUnmarshalerType) &&
		!embedsMethod(t, "MarshalBinary") && !embedsMethod(t, "UnmarshalBinary")
	binaryTypes.Store(t, ok)
	return ok
}

// embedsMethod reports whether struct t has an embedded field that brings
// the named method into t's method set.
func embedsMethod(t reflect.Type, name string) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if _, ok := ft.MethodByName(name); ok {
			return true
		}
		if ft.Kind() != reflect.Pointer {
			if _, ok := reflect.PointerTo(ft).MethodByName(name); ok {
				return true
			}
		}
	}
	return false
}

// addressable returns v itself when it is addressable, otherwise a copy
// that is.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}
