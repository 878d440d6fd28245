package compress

import (
	"errors"
	"fmt"
)

// DefaultMaxDecodedLen bounds how large a block may decode to unless
// WithMaxDecodedLen says otherwise.
const DefaultMaxDecodedLen = 64 << 20

// ErrTooLarge reports a block that decodes, or claims to decode, to more
// than the configured maximum.
var ErrTooLarge = errors.New("compress: decoded length exceeds limit")

type options struct {
	maxDecoded int
}

// Option configures a Compressor.
type Option func(*options)

// WithMaxDecodedLen caps the decoded size of a single block. Formats that
// announce their decoded length are rejected before anything is allocated.
func WithMaxDecodedLen(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDecoded = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{maxDecoded: DefaultMaxDecodedLen}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func checkLen(name string, n, max int) error {
	if n > max {
		return fmt.Errorf("%w: %s block of %d bytes (max %d)", ErrTooLarge, name, n, max)
	}
	return nil
}
