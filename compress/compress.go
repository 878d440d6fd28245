// Package compress provides the block compressors used by the cache's value
// pipeline. Every Compressor is lossless and self-delimiting: Decompress
// reverses Compress exactly and rejects corrupt or truncated input.
package compress

import (
	"fmt"
	"sort"
	"strings"
)

// Compressor turns one payload into one compressed block and back.
// Implementations are safe for concurrent use.
type Compressor interface {
	// Name identifies the format in configuration, logs and metrics.
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

const (
	NameSnappy = "snappy"
	NameS2     = "s2"
	NameLZ4    = "lz4"
	NameZstd   = "zstd"
	NameBrotli = "brotli"
	NameGzip   = "gzip"
	NameNone   = "none"
)

var byName = map[string]func(...Option) Compressor{
	NameSnappy: Snappy,
	NameS2:     S2,
	NameLZ4:    LZ4,
	NameZstd:   Zstd,
	NameBrotli: Brotli,
	NameGzip:   Gzip,
	NameNone:   func(...Option) Compressor { return None() },
}

// Default is the compressor used when none is configured.
func Default() Compressor { return Snappy() }

// ByName returns the compressor registered under name (case-insensitive).
// The empty name selects the default format. Options apply to the
// compressor that is built.
func ByName(name string, opts ...Option) (Compressor, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = NameSnappy
	}
	mk, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("compress: unknown compressor %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return mk(opts...), nil
}

// Names lists the known compressor names in sorted order.
func Names() []string {
	out := make([]string, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type none struct{}

// None stores payloads as they are.
func None() Compressor { return none{} }

func (none) Name() string { return NameNone }

func (none) Compress(src []byte) ([]byte, error) { return src, nil }

func (none) Decompress(src []byte) ([]byte, error) { return src, nil }
