package serial

import (
	"encoding"
	"fmt"
	"reflect"
)

func (in *Instance) writeAny(v reflect.Value) error {
	if !v.IsValid() {
		return in.enc.EncodeUint(0)
	}
	if err := in.writeType(v.Type()); err != nil {
		return err
	}
	return in.writeValue(v)
}

func (in *Instance) writeType(t reflect.Type) error {
	if id, ok := in.typeIDs[t]; ok {
		return in.enc.EncodeUint(uint64(id) + 2)
	}
	name, err := in.reg.nameOf(t)
	if err != nil {
		return err
	}
	in.typeIDs[t] = len(in.typeIDs)
	if err := in.enc.EncodeUint(1); err != nil {
		return err
	}
	return in.enc.EncodeString(name)
}

// writeRef writes the reference slot for a pointer, map or slice and reports
// whether the object's body has to follow.
func (in *Instance) writeRef(v reflect.Value) (bool, error) {
	if v.IsNil() {
		return false, in.enc.EncodeUint(0)
	}
	key := refKey{ptr: v.Pointer(), typ: v.Type()}
	track := true
	if v.Kind() == reflect.Slice {
		key.n = v.Len()
		track = key.n > 0
	}
	if track {
		if id, ok := in.refIDs[key]; ok {
			return false, in.enc.EncodeUint(uint64(id) + 2)
		}
		in.refIDs[key] = in.refCount
	}
	in.refCount++
	return true, in.enc.EncodeUint(1)
}

func (in *Instance) writeInterface(v reflect.Value) error {
	if v.IsNil() {
		return in.enc.EncodeUint(0)
	}
	return in.writeAny(v.Elem())
}

func (in *Instance) writeValue(v reflect.Value) error {
	if err := in.enter(); err != nil {
		return err
	}
	defer in.leave()

	t := v.Type()
	if usesBinary(t) {
		m := addressable(v).Addr().Interface().(encoding.BinaryMarshaler)
		b, err := m.MarshalBinary()
		if err != nil {
			return fmt.Errorf("%s: marshal binary: %w", t, err)
		}
		return in.enc.EncodeBytes(b)
	}

	switch t.Kind() {
	case reflect.Bool:
		return in.enc.EncodeBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return in.enc.EncodeInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return in.enc.EncodeUint(v.Uint())
	case reflect.Float32:
		return in.enc.EncodeFloat32(float32(v.Float()))
	case reflect.Float64:
		return in.enc.EncodeFloat64(v.Float())
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		if err := in.enc.EncodeFloat64(real(c)); err != nil {
			return err
		}
		return in.enc.EncodeFloat64(imag(c))
	case reflect.String:
		return in.enc.EncodeString(v.String())
	case reflect.Interface:
		return in.writeInterface(v)
	case reflect.Pointer:
		body, err := in.writeRef(v)
		if err != nil || !body {
			return err
		}
		return in.writeElem(v.Elem())
	case reflect.Slice:
		body, err := in.writeRef(v)
		if err != nil || !body {
			return err
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return in.enc.EncodeBytes(v.Bytes())
		}
		return in.writeElems(v)
	case reflect.Array:
		return in.writeElems(v)
	case reflect.Map:
		body, err := in.writeRef(v)
		if err != nil || !body {
			return err
		}
		if err := in.enc.EncodeMapLen(v.Len()); err != nil {
			return err
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := in.writeElem(iter.Key()); err != nil {
				return err
			}
			if err := in.writeElem(iter.Value()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		return in.writeStruct(v)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func (in *Instance) writeElem(v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		return in.writeInterface(v)
	}
	return in.writeValue(v)
}

func (in *Instance) writeElems(v reflect.Value) error {
	n := v.Len()
	if err := in.enc.EncodeArrayLen(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := in.writeElem(v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

// writeStruct writes exported fields by name, each with its declared type,
// so a reader whose struct gained or lost fields can still decode it.
func (in *Instance) writeStruct(v reflect.Value) error {
	fields := in.reg.fieldsOf(v.Type())
	if err := in.enc.EncodeMapLen(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := in.enc.EncodeString(f.name); err != nil {
			return err
		}
		if err := in.writeType(f.typ); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
		if err := in.writeElem(v.Field(f.index)); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	return nil
}
