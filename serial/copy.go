package serial

import (
	"encoding"
	"fmt"
	"reflect"
)

// copyValue returns a deep copy of src with the same type.
func (in *Instance) copyValue(src reflect.Value) (reflect.Value, error) {
	if err := in.enter(); err != nil {
		return reflect.Value{}, err
	}
	defer in.leave()

	t := src.Type()
	if usesBinary(t) {
		return copyBinary(src)
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return src, nil
	case reflect.Interface:
		dst := reflect.New(t).Elem()
		if src.IsNil() {
			return dst, nil
		}
		e, err := in.copyValue(src.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		dst.Set(e)
		return dst, nil
	case reflect.Pointer:
		if src.IsNil() {
			return reflect.Zero(t), nil
		}
		key := refKey{ptr: src.Pointer(), typ: t}
		if c, ok := in.copies[key]; ok {
			return c, nil
		}
		p := reflect.New(t.Elem())
		in.copies[key] = p
		e, err := in.copyValue(src.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p.Elem().Set(e)
		return p, nil
	case reflect.Slice:
		if src.IsNil() {
			return reflect.Zero(t), nil
		}
		n := src.Len()
		key := refKey{ptr: src.Pointer(), typ: t, n: n}
		if n > 0 {
			if c, ok := in.copies[key]; ok {
				return c, nil
			}
		}
		dst := reflect.MakeSlice(t, n, n)
		if n > 0 {
			in.copies[key] = dst
		}
		for i := 0; i < n; i++ {
			e, err := in.copyValue(src.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			dst.Index(i).Set(e)
		}
		return dst, nil
	case reflect.Array:
		dst := reflect.New(t).Elem()
		for i := 0; i < t.Len(); i++ {
			e, err := in.copyValue(src.Index(i))
			if err != nil {
				return reflect.Value{}, err
			}
			dst.Index(i).Set(e)
		}
		return dst, nil
	case reflect.Map:
		if src.IsNil() {
			return reflect.Zero(t), nil
		}
		key := refKey{ptr: src.Pointer(), typ: t}
		if c, ok := in.copies[key]; ok {
			return c, nil
		}
		dst := reflect.MakeMapWithSize(t, src.Len())
		in.copies[key] = dst
		iter := src.MapRange()
		for iter.Next() {
			k, err := in.copyValue(iter.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			e, err := in.copyValue(iter.Value())
			if err != nil {
				return reflect.Value{}, err
			}
			dst.SetMapIndex(k, e)
		}
		return dst, nil
	case reflect.Struct:
		// Unexported fields are carried over as they are; exported ones are
		// copied deeply.
		dst := reflect.New(t).Elem()
		dst.Set(src)
		for _, f := range in.reg.fieldsOf(t) {
			e, err := in.copyValue(src.Field(f.index))
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %s: %w", f.name, err)
			}
			dst.Field(f.index).Set(e)
		}
		return dst, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func copyBinary(src reflect.Value) (reflect.Value, error) {
	t := src.Type()
	b, err := addressable(src).Addr().Interface().(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%s: marshal binary: %w", t, err)
	}
	dst := reflect.New(t)
	if err := dst.Interface().(encoding.BinaryUnmarshaler).UnmarshalBinary(b); err != nil {
		return reflect.Value{}, fmt.Errorf("%s: unmarshal binary: %w", t, err)
	}
	return dst.Elem(), nil
}
