package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// The encoder and decoders are only used through EncodeAll/DecodeAll, which
// are safe for concurrent use. One encoder serves the process and one
// decoder serves each distinct size limit.
var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdErr  error

	zstdMu   sync.Mutex
	zstdDecs = make(map[int]*zstd.Decoder)
)

func zstdEncoder() (*zstd.Encoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return zstdEnc, zstdErr
}

func zstdDecoder(max int) (*zstd.Decoder, error) {
	zstdMu.Lock()
	defer zstdMu.Unlock()
	if d, ok := zstdDecs[max]; ok {
		return d, nil
	}
	d, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecoderMaxMemory(uint64(max)),
	)
	if err != nil {
		return nil, err
	}
	zstdDecs[max] = d
	return d, nil
}

type zstdFrame struct{ max int }

// Zstd uses single zstd frames.
func Zstd(opts ...Option) Compressor {
	return zstdFrame{max: newOptions(opts).maxDecoded}
}

func (zstdFrame) Name() string { return NameZstd }

func (zstdFrame) Compress(src []byte) ([]byte, error) {
	enc, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return enc.EncodeAll(src, nil), nil
}

func (z zstdFrame) Decompress(src []byte) ([]byte, error) {
	dec, err := zstdDecoder(z.max)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	out, err := dec.DecodeAll(src, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, fmt.Errorf("%w: zstd: %w", ErrTooLarge, err)
	}
	return out, err
}
