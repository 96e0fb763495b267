// Package compress wraps a storage backend and compresses values at rest.
//
// Stored values carry a one byte codec marker followed by the payload:
//
//	'z'  zstd
//	'b'  brotli
//	'r'  raw, used for values below the size threshold
//
// Values without a marker are returned unchanged, so a backend that already
// holds plain JSON keeps working after the wrapper is added. JSON text never
// starts with any of the marker bytes.
package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/goliatone/go-persist/pkg/storage"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/bytebufferpool"
)

// Codec selects the compression algorithm used for writes.
type Codec byte

const (
	Zstd   Codec = 'z'
	Brotli Codec = 'b'
	Raw    Codec = 'r'
)

// String implements fmt.Stringer.
func (c Codec) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case Brotli:
		return "brotli"
	case Raw:
		return "raw"
	default:
		return fmt.Sprintf("codec(%q)", byte(c))
	}
}

// Storage is the backend being wrapped.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Option configures a Store.
type Option func(*Store)

// WithCodec selects the codec used for new writes. Defaults to Zstd.
func WithCodec(codec Codec) Option {
	return func(s *Store) {
		s.codec = codec
	}
}

// WithMinSize stores values shorter than n bytes uncompressed. Defaults to 64.
func WithMinSize(n int) Option {
	return func(s *Store) {
		s.minSize = n
	}
}

// WithBrotliLevel sets the brotli quality. Defaults to brotli.DefaultCompression.
func WithBrotliLevel(level int) Option {
	return func(s *Store) {
		s.brotliLevel = level
	}
}

// Store compresses on Set and decompresses on Get.
type Store struct {
	next        Storage
	codec       Codec
	minSize     int
	brotliLevel int

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New wraps next.
func New(next Storage, opts ...Option) (*Store, error) {
	if next == nil {
		return nil, errors.New("compress: storage is required")
	}
	s := &Store{
		next:        next,
		codec:       Zstd,
		minSize:     64,
		brotliLevel: brotli.DefaultCompression,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	switch s.codec {
	case Zstd, Brotli, Raw:
	default:
		return nil, fmt.Errorf("compress: unsupported codec %s", s.codec)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("compress: zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("compress: zstd decoder: %w", err)
	}
	s.encoder = encoder
	s.decoder = decoder
	return s, nil
}

// Close releases the zstd decoder resources.
func (s *Store) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

// Get reads key from the wrapped backend and decodes it. Values that fail to
// decode are reported with storage.ErrCorrupt.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := s.next.Get(ctx, key)
	if err != nil || !ok {
		return value, ok, err
	}
	decoded, err := s.Decode(value)
	if err != nil {
		return nil, false, fmt.Errorf("compress: read %q: %w: %w", key, storage.ErrCorrupt, err)
	}
	return decoded, true, nil
}

// Set encodes value and writes it to the wrapped backend.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	encoded, err := s.Encode(value)
	if err != nil {
		return fmt.Errorf("compress: write %q: %w", key, err)
	}
	return s.next.Set(ctx, key, encoded)
}

// Encode prefixes value with the codec marker and compresses it.
func (s *Store) Encode(value []byte) ([]byte, error) {
	codec := s.codec
	if len(value) < s.minSize {
		codec = Raw
	}
	switch codec {
	case Zstd:
		out := make([]byte, 1, len(value)/2+1)
		out[0] = byte(Zstd)
		return s.encoder.EncodeAll(value, out), nil
	case Brotli:
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		_ = buf.WriteByte(byte(Brotli))
		w := brotli.NewWriterLevel(buf, s.brotliLevel)
		_, err := w.Write(value)
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, err
		}
		return bytes.Clone(buf.B), nil
	default:
		out := make([]byte, 0, len(value)+1)
		out = append(out, byte(Raw))
		return append(out, value...), nil
	}
}

// Decode reverses Encode. Unmarked values are returned as they are.
func (s *Store) Decode(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return value, nil
	}
	switch Codec(value[0]) {
	case Zstd:
		return s.decoder.DecodeAll(value[1:], nil)
	case Brotli:
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		if _, err := io.Copy(buf, brotli.NewReader(bytes.NewReader(value[1:]))); err != nil {
			return nil, err
		}
		return bytes.Clone(buf.B), nil
	case Raw:
		return bytes.Clone(value[1:]), nil
	default:
		return value, nil
	}
}
