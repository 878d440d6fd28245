package compress

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// Stream formats share one shape: a pooled writer reset onto a fresh buffer
// per call, and a reader drained to the end so a truncated stream surfaces
// as an error. Formats whose reader stops quietly at a cut stream are
// written sized: a uvarint of the decoded length precedes the stream and
// Decompress insists on getting exactly that many bytes back.

type resetWriter interface {
	io.WriteCloser
	Reset(w io.Writer)
}

type streamCompressor struct {
	name    string
	writers *sync.Pool
	reader  func(io.Reader) (io.Reader, error)
	sized   bool
	max     int
}

func (s *streamCompressor) Name() string { return s.name }

func (s *streamCompressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if s.sized {
		buf.Write(binary.AppendUvarint(nil, uint64(len(src))))
	}
	w := s.writers.Get().(resetWriter)
	defer s.writers.Put(w)
	w.Reset(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *streamCompressor) Decompress(src []byte) ([]byte, error) {
	limit, want := s.max, -1
	if s.sized {
		n, k := binary.Uvarint(src)
		if k <= 0 {
			return nil, fmt.Errorf("%s: invalid length prefix", s.name)
		}
		if n > uint64(s.max) {
			return nil, fmt.Errorf("%w: %s block of %d bytes (max %d)", ErrTooLarge, s.name, n, s.max)
		}
		limit, want = int(n), int(n)
		src = src[k:]
	}

	r, err := s.reader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
	if err != nil {
		return nil, err
	}
	if want >= 0 && len(out) != want {
		return nil, fmt.Errorf("%s: decoded %d of %d bytes: %w", s.name, len(out), want, io.ErrUnexpectedEOF)
	}
	if err := checkLen(s.name, len(out), s.max); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	lz4Writers = &sync.Pool{New: func() any {
		return lz4.NewWriter(nil)
	}}
	brotliWriters = &sync.Pool{New: func() any {
		return brotli.NewWriterLevel(nil, brotli.DefaultCompression)
	}}
	gzipWriters = &sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(nil, gzip.DefaultCompression)
		return w
	}}
)

// LZ4 uses the LZ4 frame format.
func LZ4(opts ...Option) Compressor {
	return &streamCompressor{
		name:    NameLZ4,
		writers: lz4Writers,
		reader:  func(r io.Reader) (io.Reader, error) { return lz4.NewReader(r), nil },
		max:     newOptions(opts).maxDecoded,
	}
}

// Brotli writes the decoded length as a uvarint followed by a brotli stream
// at the default quality.
func Brotli(opts ...Option) Compressor {
	return &streamCompressor{
		name:    NameBrotli,
		writers: brotliWriters,
		reader:  func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
		sized:   true,
		max:     newOptions(opts).maxDecoded,
	}
}

// Gzip uses gzip (RFC 1952) through klauspost's faster implementation.
func Gzip(opts ...Option) Compressor {
	return &streamCompressor{
		name:    NameGzip,
		writers: gzipWriters,
		reader:  func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
		max:     newOptions(opts).maxDecoded,
	}
}
