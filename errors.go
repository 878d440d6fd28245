package snapcache

import (
	"errors"
	"fmt"
)

// ErrNilValue is returned by Set for nil values unless Options.AllowNil is set.
var ErrNilValue = errors.New("snapcache: nil values are not cached")

// CodecError reports a value that could not be encoded for, or decoded from,
// the store. Err is usually a *serial.Error, so errors.Is with
// serial.ErrSerialization, serial.ErrDeserialization and
// serial.ErrCompression works through it.
type CodecError struct {
	Cache string
	Key   string
	Op    string // "encode" or "decode"
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("snapcache: %s %s %q: %v", e.Cache, e.Op, e.Key, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }
