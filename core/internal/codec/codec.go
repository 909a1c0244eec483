// Package codec compresses and decompresses archive sections and payloads as
// single zstd frames, optionally through a shared dictionary.
//
// Every frame produced by an Encoder declares its decompressed size, and a
// Decoder refuses frames that do not, so a payload is always decoded into a
// buffer of exactly the declared size.
package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/zsdb/core/internal/dbtype"
	"github.com/meigma/zsdb/core/internal/sizing"
)

// Level is the zstd compression level used for every frame.
const Level = 3

// DefaultMaxSize is the default limit on a frame's declared size (256MB).
const DefaultMaxSize = 256 << 20

// Encoder is a compression context.
// EncodeAll on the underlying zstd encoder is safe for concurrent use.
type Encoder struct {
	enc  *zstd.Encoder
	dict *Dictionary
}

// NewEncoder creates a compression context at Level.
// If dict is non-nil every frame is compressed against it.
func NewEncoder(dict *Dictionary) (*Encoder, error) {
	opts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(Level)),
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true),
		// Frames at or below the minimum window only declare their size
		// as single-segment frames.
		zstd.WithSingleSegment(true),
	}
	if dict != nil {
		if dict.formatted {
			opts = append(opts, zstd.WithEncoderDict(dict.data))
		} else {
			opts = append(opts, zstd.WithEncoderDictRaw(dict.id, dict.data))
		}
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create zstd encoder: %v", dbtype.ErrContext, err)
	}
	return &Encoder{enc: enc, dict: dict}, nil
}

// Compress returns src encoded as one zstd frame.
//
// Empty input yields empty output and a nil error; an engine failure yields
// an error wrapping ErrCompression, never an empty result.
func (e *Encoder) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	out := e.enc.EncodeAll(src, make([]byte, 0, len(src)/2+64))
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: encoder produced no output", dbtype.ErrCompression)
	}
	return out, nil
}

// Dictionary returns the dictionary bound to e, or nil.
func (e *Encoder) Dictionary() *Dictionary {
	return e.dict
}

// Close releases the encoder.
func (e *Encoder) Close() error {
	return e.enc.Close()
}

// Decoder is a decompression context.
type Decoder struct {
	dec     *zstd.Decoder
	dict    *Dictionary
	maxSize uint64
}

type decoderConfig struct {
	maxSize     uint64
	concurrency int
	lowmem      bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*decoderConfig)

// WithMaxSize limits the declared size of frames the decoder accepts.
// Set limit to 0 to disable the limit.
func WithMaxSize(limit uint64) DecoderOption {
	return func(c *decoderConfig) {
		c.maxSize = limit
	}
}

// WithConcurrency sets how many DecodeAll calls may run at once (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithConcurrency(n int) DecoderOption {
	return func(c *decoderConfig) {
		if n < 0 {
			n = 0
		}
		c.concurrency = n
	}
}

// WithLowmem sets whether the decoder should use low-memory mode.
func WithLowmem(enabled bool) DecoderOption {
	return func(c *decoderConfig) {
		c.lowmem = enabled
	}
}

// NewDecoder creates a decompression context.
// If dict is non-nil, frames that reference it can be decoded; frames
// without a dictionary ID decode as before.
func NewDecoder(dict *Dictionary, opts ...DecoderOption) (*Decoder, error) {
	cfg := decoderConfig{maxSize: DefaultMaxSize, concurrency: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	dopts := []zstd.DOption{
		zstd.WithDecoderConcurrency(cfg.concurrency),
		zstd.WithDecoderLowmem(cfg.lowmem),
		zstd.WithDecodeAllCapLimit(true),
	}
	if cfg.maxSize != 0 {
		dopts = append(dopts, zstd.WithDecoderMaxMemory(cfg.maxSize))
	}
	if dict != nil {
		if dict.formatted {
			dopts = append(dopts, zstd.WithDecoderDicts(dict.data))
		} else {
			dopts = append(dopts, zstd.WithDecoderDictRaw(dict.id, dict.data))
		}
	}
	dec, err := zstd.NewReader(nil, dopts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create zstd decoder: %v", dbtype.ErrContext, err)
	}
	return &Decoder{dec: dec, dict: dict, maxSize: cfg.maxSize}, nil
}

// Decompress decodes a single frame into a buffer of exactly the size the
// frame declares.
func (d *Decoder) Decompress(src []byte) ([]byte, error) {
	declared, err := FrameContentSize(src)
	if err != nil {
		return nil, err
	}
	if d.maxSize != 0 && declared > d.maxSize {
		return nil, fmt.Errorf("%w: declared size %d exceeds limit %d", dbtype.ErrCompression, declared, d.maxSize)
	}
	size, err := sizing.ToInt(declared, dbtype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	out, err := d.dec.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dbtype.ErrCompression, err)
	}
	if len(out) != size {
		return nil, fmt.Errorf("%w: decoded %d bytes, frame declared %d", dbtype.ErrCompression, len(out), size)
	}
	return out, nil
}

// Dictionary returns the dictionary bound to d, or nil.
func (d *Decoder) Dictionary() *Dictionary {
	return d.dict
}

// Close releases the decoder.
func (d *Decoder) Close() {
	d.dec.Close()
}

// FrameContentSize returns the decompressed size declared in the header of
// the zstd frame at the start of src.
func FrameContentSize(src []byte) (uint64, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("%w: empty frame", dbtype.ErrCompression)
	}
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return 0, fmt.Errorf("%w: frame header: %v", dbtype.ErrCompression, err)
	}
	if h.Skippable || !h.HasFCS {
		return 0, fmt.Errorf("%w: frame does not declare its content size", dbtype.ErrCompression)
	}
	return h.FrameContentSize, nil
}
