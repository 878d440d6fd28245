package serial

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps reflect.Type to stable names and back.
//
// Nothing has to be registered up front: every type written by an Instance
// is remembered under its canonical name, so a process can always read what
// it wrote. A process that only reads must know the named types it will meet,
// either because it wrote them earlier or through Register. Unnamed
// composites (*T, []T, [N]T, map[K]V) are rebuilt from their names and
// builtin types are always known.
type Registry struct {
	types  *xsync.MapOf[string, reflect.Type]
	names  *xsync.MapOf[reflect.Type, string]
	fields *xsync.MapOf[reflect.Type, []field]
}

type field struct {
	name  string
	index int
	typ   reflect.Type
}

var builtins = []reflect.Type{
	reflect.TypeFor[bool](),
	reflect.TypeFor[int](),
	reflect.TypeFor[int8](),
	reflect.TypeFor[int16](),
	reflect.TypeFor[int32](),
	reflect.TypeFor[int64](),
	reflect.TypeFor[uint](),
	reflect.TypeFor[uint8](),
	reflect.TypeFor[uint16](),
	reflect.TypeFor[uint32](),
	reflect.TypeFor[uint64](),
	reflect.TypeFor[uintptr](),
	reflect.TypeFor[float32](),
	reflect.TypeFor[float64](),
	reflect.TypeFor[complex64](),
	reflect.TypeFor[complex128](),
	reflect.TypeFor[string](),
	reflect.TypeFor[error](),
}

var anyType = reflect.TypeFor[any]()

// NewRegistry returns a registry that knows only the builtin types.
func NewRegistry() *Registry {
	r := &Registry{
		types:  xsync.NewMapOf[string, reflect.Type](),
		names:  xsync.NewMapOf[reflect.Type, string](),
		fields: xsync.NewMapOf[reflect.Type, []field](),
	}
	for _, t := range builtins {
		r.types.Store(t.Name(), t)
		r.names.Store(t, t.Name())
	}
	r.types.Store("interface {}", anyType)
	r.names.Store(anyType, "interface {}")
	return r
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is the registry used by pools built without WithRegistry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register makes the type of v, and every named type reachable from it,
// resolvable by name.
func Register(v any) error { return defaultRegistry.Register(v) }

// RegisterName makes payloads that name v's type as name readable, e.g.
// after the type moved to another package. Writers keep using the canonical
// name.
func RegisterName(name string, v any) error { return defaultRegistry.RegisterName(name, v) }

// MustRegister is Register for init blocks.
func MustRegister(vs ...any) {
	for _, v := range vs {
		if err := Register(v); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Register(v any) error {
	t := reflect.TypeOf(v)
	if t == nil {
		return fmt.Errorf("serial: register nil")
	}
	return r.walk(t, make(map[reflect.Type]struct{}))
}

// RegisterType is Register for a reflect.Type.
func (r *Registry) RegisterType(t reflect.Type) error {
	if t == nil {
		return fmt.Errorf("serial: register nil")
	}
	return r.walk(t, make(map[reflect.Type]struct{}))
}

func (r *Registry) RegisterName(name string, v any) error {
	t := reflect.TypeOf(v)
	if t == nil {
		return fmt.Errorf("serial: register nil")
	}
	if name == "" {
		return fmt.Errorf("serial: empty name for %s", t)
	}
	prev, loaded := r.types.LoadOrStore(name, t)
	if loaded && prev != t {
		return fmt.Errorf("%w: %q is %s, not %s", ErrNameConflict, name, prev, t)
	}
	return r.walk(t, make(map[reflect.Type]struct{}))
}

func (r *Registry) walk(t reflect.Type, seen map[reflect.Type]struct{}) error {
	if _, ok := seen[t]; ok {
		return nil
	}
	seen[t] = struct{}{}
	if _, err := r.nameOf(t); err != nil {
		return err
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return r.walk(t.Elem(), seen)
	case reflect.Map:
		if err := r.walk(t.Key(), seen); err != nil {
			return err
		}
		return r.walk(t.Elem(), seen)
	case reflect.Struct:
		for _, f := range r.fieldsOf(t) {
			if err := r.walk(f.typ, seen); err != nil {
				return fmt.Errorf("%s.%s: %w", t, f.name, err)
			}
		}
	}
	return nil
}

// nameOf returns the name t is written under, remembering t on first use.
func (r *Registry) nameOf(t reflect.Type) (string, error) {
	if name, ok := r.names.Load(t); ok {
		return name, nil
	}
	name, err := r.canonical(t)
	if err != nil {
		return "", err
	}
	if err := r.remember(name, t); err != nil {
		return "", err
	}
	return name, nil
}

func (r *Registry) canonical(t reflect.Type) (string, error) {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Invalid:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name(), nil
		}
		return t.PkgPath() + "." + t.Name(), nil
	}
	switch t.Kind() {
	case reflect.Pointer:
		elem, err := r.nameOf(t.Elem())
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case reflect.Slice:
		elem, err := r.nameOf(t.Elem())
		if err != nil {
			return "", err
		}
		return "[]" + elem, nil
	case reflect.Array:
		elem, err := r.nameOf(t.Elem())
		if err != nil {
			return "", err
		}
		return "[" + strconv.Itoa(t.Len()) + "]" + elem, nil
	case reflect.Map:
		key, err := r.nameOf(t.Key())
		if err != nil {
			return "", err
		}
		elem, err := r.nameOf(t.Elem())
		if err != nil {
			return "", err
		}
		return "map[" + key + "]" + elem, nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "interface {}", nil
		}
	}
	return "", fmt.Errorf("%w: unnamed %s", ErrUnsupportedType, t)
}

func (r *Registry) remember(name string, t reflect.Type) error {
	prev, loaded := r.types.LoadOrStore(name, t)
	if loaded && prev != t {
		return fmt.Errorf("%w: %q is %s, not %s", ErrNameConflict, name, prev, t)
	}
	r.names.LoadOrStore(t, name)
	return nil
}

// typeOf resolves a name read from the wire.
func (r *Registry) typeOf(name string) (reflect.Type, error) {
	if t, ok := r.types.Load(name); ok {
		return t, nil
	}
	t, err := r.parse(name)
	if err != nil {
		return nil, err
	}
	r.types.Store(name, t)
	return t, nil
}

// Array types named on the wire are bounded both in length and in bytes.
const (
	maxArrayLen   = 1 << 24
	maxArrayBytes = 1 << 24
)

func (r *Registry) parse(name string) (reflect.Type, error) {
	switch {
	case strings.HasPrefix(name, "*"):
		elem, err := r.typeOf(name[1:])
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(elem), nil
	case strings.HasPrefix(name, "[]"):
		elem, err := r.typeOf(name[2:])
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case strings.HasPrefix(name, "map["):
		end := closing(name, 3)
		if end < 0 {
			break
		}
		key, err := r.typeOf(name[4:end])
		if err != nil {
			return nil, err
		}
		if !key.Comparable() {
			return nil, fmt.Errorf("%w: map key %s is not comparable", ErrUnsupportedType, key)
		}
		elem, err := r.typeOf(name[end+1:])
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(key, elem), nil
	case strings.HasPrefix(name, "["):
		end := strings.IndexByte(name, ']')
		if end < 0 {
			break
		}
		n, err := strconv.Atoi(name[1:end])
		if err != nil || n < 0 || n > maxArrayLen {
			break
		}
		elem, err := r.typeOf(name[end+1:])
		if err != nil {
			return nil, err
		}
		if sz := elem.Size(); sz > 0 && uint64(n) > maxArrayBytes/uint64(sz) {
			return nil, fmt.Errorf("%w: %q exceeds %d bytes", ErrMalformed, name, maxArrayBytes)
		}
		return reflect.ArrayOf(n, elem), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// closing returns the index of the bracket matching the one at open.
func closing(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// fieldsOf lists the exported fields of struct type t. The `serial` tag
// renames a field ("name") or skips it ("-"). Field types are remembered so a
// reader resolves the declared types it finds on the wire.
func (r *Registry) fieldsOf(t reflect.Type) []field {
	if fs, ok := r.fields.Load(t); ok {
		return fs
	}
	fs := make([]field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("serial"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		fs = append(fs, field{name: name, index: i, typ: sf.Type})
	}
	for _, f := range fs {
		_, _ = r.nameOf(f.typ) // unsupported field types fail when written
	}
	fs, _ = r.fields.LoadOrStore(t, fs)
	return fs
}
