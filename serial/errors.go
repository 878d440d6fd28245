package serial

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind uint8

const (
	// KindSerialization: the object graph could not be written.
	KindSerialization Kind = iota + 1
	// KindDeserialization: malformed tag, unresolved type, truncated bytes.
	KindDeserialization
	// KindCompression: the compressed stream is invalid.
	KindCompression
)

func (k Kind) String() string {
	switch k {
	case KindSerialization:
		return "serialization"
	case KindDeserialization:
		return "deserialization"
	case KindCompression:
		return "compression"
	default:
		return "unknown"
	}
}

var (
	// ErrSerialization matches every *Error regardless of its Kind. Callers
	// that only need to know "the value pipeline failed" test for this one.
	ErrSerialization = errors.New("serialization failed")

	// ErrDeserialization and ErrCompression match only errors of that Kind.
	ErrDeserialization = errors.New("deserialization failed")
	ErrCompression     = errors.New("compression failed")

	// ErrTypeMismatch is returned by Decode when the decoded value does not
	// have the type the caller asked for.
	ErrTypeMismatch = errors.New("serial: type mismatch")
)

// Causes carried inside *Error.
var (
	ErrUnsupportedType = errors.New("unsupported type")
	ErrUnknownType     = errors.New("unknown type")
	ErrNameConflict    = errors.New("type name already registered")
	ErrMalformed       = errors.New("malformed input")
	ErrMaxDepth        = errors.New("max depth exceeded")
)

// Error is the single failure type surfaced by the pipeline. Kind tells the
// three causes apart for diagnosis; Err holds the underlying cause.
type Error struct {
	Kind Kind
	Op   string // serialize, deserialize, copy, compress, decompress
	Type string // Go type involved, if known
	Err  error
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("serial: %s %s: %s: %v", e.Op, e.Type, e.Kind, e.Err)
	}
	return fmt.Sprintf("serial: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrSerialization:
		return true
	case ErrDeserialization:
		return e.Kind == KindDeserialization
	case ErrCompression:
		return e.Kind == KindCompression
	}
	return false
}

// Wrap returns err as an *Error of the given kind. An err that already is an
// *Error is returned unchanged so the original cause and kind survive
// layering. Wrap(nil) is nil.
func Wrap(kind Kind, op, typ string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: kind, Op: op, Type: typ, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
}
