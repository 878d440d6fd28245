package compress

import (
	"github.com/golang/snappy"
	"github.com/klauspost/compress/s2"
)

type snappyBlock struct{ max int }

// Snappy uses the Snappy block format: a varint length prefix followed by
// the compressed body. It is the default.
func Snappy(opts ...Option) Compressor {
	return snappyBlock{max: newOptions(opts).maxDecoded}
}

func (snappyBlock) Name() string { return NameSnappy }

func (snappyBlock) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

// Decompress checks the announced length before decoding; snappy.Decode
// allocates it up front.
func (s snappyBlock) Decompress(src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if err := checkLen(NameSnappy, n, s.max); err != nil {
		return nil, err
	}
	return snappy.Decode(nil, src)
}

type s2Block struct{ max int }

// S2 is klauspost's Snappy extension. It compresses better and faster than
// Snappy and decodes Snappy blocks, but Snappy cannot decode S2 blocks.
func S2(opts ...Option) Compressor {
	return s2Block{max: newOptions(opts).maxDecoded}
}

func (s2Block) Name() string { return NameS2 }

func (s2Block) Compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (s s2Block) Decompress(src []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if err := checkLen(NameS2, n, s.max); err != nil {
		return nil, err
	}
	return s2.Decode(nil, src)
}
