package serial

import (
	"encoding"
	"fmt"
	"reflect"
)

func (in *Instance) readAny() (reflect.Value, error) {
	t, err := in.readType()
	if err != nil || t == nil {
		return reflect.Value{}, err
	}
	v, err := in.newValue(t)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := in.readValue(v); err != nil {
		return reflect.Value{}, err
	}
	return v, nil
}

// newValue allocates a zero t once the input left can hold t's body.
func (in *Instance) newValue(t reflect.Type) (reflect.Value, error) {
	if need := minWireLen(t); need > in.rd.Len() {
		return reflect.Value{}, malformed("%s needs at least %d bytes, %d left", t, need, in.rd.Len())
	}
	return reflect.New(t).Elem(), nil
}

const maxWireLen = 1 << 30

// minWireLen is the fewest bytes a body of type t occupies. Only arrays
// are larger than one byte: each element is written out.
func minWireLen(t reflect.Type) int {
	if t.Kind() != reflect.Array || usesBinary(t) {
		return 1
	}
	n, elem := t.Len(), minWireLen(t.Elem())
	if n > 0 && elem > (maxWireLen-1)/n {
		return maxWireLen
	}
	return 1 + n*elem
}

// readType returns nil for the nil slot.
func (in *Instance) readType() (reflect.Type, error) {
	n, err := in.dec.DecodeUint64()
	if err != nil {
		return nil, err
	}
	switch n {
	case 0:
		return nil, nil
	case 1:
		name, err := in.dec.DecodeString()
		if err != nil {
			return nil, err
		}
		t, err := in.reg.typeOf(name)
		if err != nil {
			return nil, err
		}
		in.types = append(in.types, t)
		return t, nil
	}
	id := n - 2
	if id >= uint64(len(in.types)) {
		return nil, malformed("type id %d out of range", id)
	}
	return in.types[id], nil
}

// readRef reads a reference slot into v. It returns the id reserved for a
// new object (whose body follows) or -1 when v is already complete.
func (in *Instance) readRef(v reflect.Value) (int, error) {
	n, err := in.dec.DecodeUint64()
	if err != nil {
		return -1, err
	}
	switch n {
	case 0:
		v.SetZero()
		return -1, nil
	case 1:
		in.refs = append(in.refs, reflect.Value{})
		return len(in.refs) - 1, nil
	}
	id := n - 2
	if id >= uint64(len(in.refs)) || !in.refs[id].IsValid() {
		return -1, malformed("reference %d out of range", id)
	}
	ref := in.refs[id]
	if ref.Type() != v.Type() {
		return -1, malformed("reference %d is %s, want %s", id, ref.Type(), v.Type())
	}
	v.Set(ref)
	return -1, nil
}

// readLen reads a collection length and checks it against the bytes left,
// every element taking at least min bytes.
func (in *Instance) readLen(mapLen bool, min int) (int, error) {
	var (
		n   int
		err error
	)
	if mapLen {
		n, err = in.dec.DecodeMapLen()
	} else {
		n, err = in.dec.DecodeArrayLen()
	}
	if err != nil {
		return 0, err
	}
	if n < 0 || n > in.rd.Len()/min {
		return 0, malformed("length %d exceeds input", n)
	}
	return n, nil
}

func (in *Instance) readInterface(v reflect.Value) error {
	t, err := in.readType()
	if err != nil {
		return err
	}
	if t == nil {
		v.SetZero()
		return nil
	}
	if !t.AssignableTo(v.Type()) {
		return malformed("%s does not implement %s", t, v.Type())
	}
	e, err := in.newValue(t)
	if err != nil {
		return err
	}
	if err := in.readValue(e); err != nil {
		return err
	}
	v.Set(e)
	return nil
}

// readValue decodes into v, which must be settable.
func (in *Instance) readValue(v reflect.Value) error {
	if err := in.enter(); err != nil {
		return err
	}
	defer in.leave()

	t := v.Type()
	if usesBinary(t) {
		b, err := in.dec.DecodeBytes()
		if err != nil {
			return err
		}
		u := v.Addr().Interface().(encoding.BinaryUnmarshaler)
		if err := u.UnmarshalBinary(b); err != nil {
			return fmt.Errorf("%s: unmarshal binary: %w", t, err)
		}
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := in.dec.DecodeBool()
		if err != nil {
			return err
		}
		v.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := in.dec.DecodeInt64()
		if err != nil {
			return err
		}
		if v.OverflowInt(n) {
			return malformed("%d overflows %s", n, t)
		}
		v.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := in.dec.DecodeUint64()
		if err != nil {
			return err
		}
		if v.OverflowUint(n) {
			return malformed("%d overflows %s", n, t)
		}
		v.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := in.dec.DecodeFloat64()
		if err != nil {
			return err
		}
		v.SetFloat(f)
		return nil
	case reflect.Complex64, reflect.Complex128:
		re, err := in.dec.DecodeFloat64()
		if err != nil {
			return err
		}
		im, err := in.dec.DecodeFloat64()
		if err != nil {
			return err
		}
		v.SetComplex(complex(re, im))
		return nil
	case reflect.String:
		s, err := in.dec.DecodeString()
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil
	case reflect.Interface:
		return in.readInterface(v)
	case reflect.Pointer:
		id, err := in.readRef(v)
		if err != nil || id < 0 {
			return err
		}
		e, err := in.newValue(t.Elem())
		if err != nil {
			return err
		}
		p := e.Addr()
		in.refs[id] = p
		v.Set(p)
		return in.readElem(p.Elem())
	case reflect.Slice:
		id, err := in.readRef(v)
		if err != nil || id < 0 {
			return err
		}
		return in.readSlice(v, id)
	case reflect.Array:
		n, err := in.readLen(false, 1)
		if err != nil {
			return err
		}
		if n != t.Len() {
			return malformed("array length %d, want %d", n, t.Len())
		}
		for i := 0; i < n; i++ {
			if err := in.readElem(v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		id, err := in.readRef(v)
		if err != nil || id < 0 {
			return err
		}
		return in.readMap(v, id)
	case reflect.Struct:
		return in.readStruct(v)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func (in *Instance) readElem(v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		return in.readInterface(v)
	}
	return in.readValue(v)
}

func (in *Instance) readSlice(v reflect.Value, id int) error {
	t := v.Type()
	if t.Elem().Kind() == reflect.Uint8 {
		b, err := in.dec.DecodeBytes()
		if err != nil {
			return err
		}
		if b == nil {
			b = []byte{}
		}
		s := reflect.New(t).Elem()
		s.SetBytes(b)
		in.refs[id] = s
		v.Set(s)
		return nil
	}
	n, err := in.readLen(false, minWireLen(t.Elem()))
	if err != nil {
		return err
	}
	s := reflect.MakeSlice(t, n, n)
	in.refs[id] = s
	v.Set(s)
	for i := 0; i < n; i++ {
		if err := in.readElem(s.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (in *Instance) readMap(v reflect.Value, id int) error {
	t := v.Type()
	n, err := in.readLen(true, 2)
	if err != nil {
		return err
	}
	m := reflect.MakeMapWithSize(t, n)
	in.refs[id] = m
	v.Set(m)
	for i := 0; i < n; i++ {
		k, err := in.newValue(t.Key())
		if err != nil {
			return err
		}
		if err := in.readElem(k); err != nil {
			return err
		}
		e, err := in.newValue(t.Elem())
		if err != nil {
			return err
		}
		if err := in.readElem(e); err != nil {
			return err
		}
		m.SetMapIndex(k, e)
	}
	return nil
}

// readStruct matches fields by name. Fields missing from the input keep
// their zero value; fields unknown to t are decoded with their declared type
// and dropped. A known field whose declared type changed is converted when
// the conversion is numeric and lossless, otherwise decoding fails.
func (in *Instance) readStruct(v reflect.Value) error {
	t := v.Type()
	n, err := in.readLen(true, 2)
	if err != nil {
		return err
	}
	fields := in.reg.fieldsOf(t)
	for i := 0; i < n; i++ {
		name, err := in.dec.DecodeString()
		if err != nil {
			return err
		}
		wt, err := in.readType()
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if wt == nil {
			return malformed("field %s has no type", name)
		}
		f, ok := lookupField(fields, name)
		if ok && f.typ == wt {
			if err := in.readElem(v.Field(f.index)); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			continue
		}
		tmp, err := in.newValue(wt)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if err := in.readElem(tmp); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if !ok {
			continue
		}
		if err := assignEvolved(v.Field(f.index), tmp); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

func lookupField(fields []field, name string) (field, bool) {
	for _, f := range fields {
		if f.name == name {
			return f, true
		}
	}
	return field{}, false
}

func assignEvolved(dst, src reflect.Value) error {
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	switch {
	case isInt(src.Kind()) && isInt(dst.Kind()):
		if dst.OverflowInt(src.Int()) {
			return malformed("%d overflows %s", src.Int(), dst.Type())
		}
		dst.SetInt(src.Int())
		return nil
	case isUint(src.Kind()) && isUint(dst.Kind()):
		if dst.OverflowUint(src.Uint()) {
			return malformed("%d overflows %s", src.Uint(), dst.Type())
		}
		dst.SetUint(src.Uint())
		return nil
	case isFloat(src.Kind()) && isFloat(dst.Kind()):
		dst.SetFloat(src.Float())
		return nil
	}
	return malformed("cannot assign %s to %s", src.Type(), dst.Type())
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
