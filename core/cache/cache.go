package cache

import "io"

// ByteSource provides random access to archive bytes.
// It has the same method set as zsdb.ByteSource.
type ByteSource interface {
	io.ReaderAt

	// Size returns the total size of the data source in bytes.
	Size() int64
}

// Identifier is implemented by sources that know a stable identity, such
// as the URL and validator of a remote archive.
type Identifier interface {
	// SourceID returns a unique identifier for this data source.
	// The ID is used as part of the cache key, so it must be stable
	// across calls and change whenever the content changes.
	SourceID() string
}

// BlockCache wraps ByteSources with block-level caching.
//
// Block caching is most effective for random, non-contiguous reads such as
// lookups over remote sources. Reads spanning many blocks bypass the cache;
// see DefaultMaxBlocksPerRead.
type BlockCache interface {
	// Wrap returns a ByteSource that caches reads from src in fixed-size blocks.
	Wrap(src ByteSource, opts ...WrapOption) (ByteSource, error)

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}

// DefaultBlockSize is the default block size used by block caches.
const DefaultBlockSize int64 = 64 << 10

// DefaultMaxBlocksPerRead caps cached blocks per ReadAt to avoid large sequential reads.
const DefaultMaxBlocksPerRead = 4

// WrapConfig controls block cache wrapping behavior.
type WrapConfig struct {
	// BlockSize is the size in bytes of each cached block.
	// Smaller blocks improve cache hit rates for random reads but increase
	// metadata overhead. Larger blocks are more efficient for sequential reads.
	BlockSize int64

	// MaxBlocksPerRead is the maximum number of blocks that will be cached
	// for a single ReadAt call. Reads spanning more blocks than this limit
	// bypass the cache entirely. Use 0 to disable the limit.
	MaxBlocksPerRead int

	// SourceID identifies the source in cache keys. When empty, the source
	// must implement Identifier.
	SourceID string
}

// DefaultWrapConfig returns the default block cache configuration.
func DefaultWrapConfig() WrapConfig {
	return WrapConfig{
		BlockSize:        DefaultBlockSize,
		MaxBlocksPerRead: DefaultMaxBlocksPerRead,
	}
}

// WrapOption configures block cache wrapping behavior.
type WrapOption func(*WrapConfig)

// WithBlockSize sets the block size used for caching.
func WithBlockSize(n int64) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.BlockSize = n
	}
}

// WithMaxBlocksPerRead bypasses caching when a ReadAt spans more than n blocks.
// Values <= 0 disable the limit.
func WithMaxBlocksPerRead(n int) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.MaxBlocksPerRead = n
	}
}

// WithSourceID sets the identity of a source that does not implement
// Identifier, or overrides the one it reports.
func WithSourceID(id string) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.SourceID = id
	}
}

// SourceIDFor resolves the cache identity of src under cfg.
func (cfg WrapConfig) SourceIDFor(src ByteSource) string {
	if cfg.SourceID != "" {
		return cfg.SourceID
	}
	if id, ok := src.(Identifier); ok {
		return id.SourceID()
	}
	return ""
}
