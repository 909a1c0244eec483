package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/zsdb/core/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
)

// BlockCache stores fixed-size blocks of archive sources as files under a
// directory, sharded by key prefix. It is safe for concurrent use, including
// by several processes sharing the directory.
type BlockCache struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64

	bytes   atomic.Int64
	fetches singleflight.Group
	pruneMu sync.Mutex
}

var _ cache.BlockCache = (*BlockCache)(nil)

// Option configures a BlockCache.
type Option func(*BlockCache)

// WithMaxBytes caps the total size of cached blocks. The oldest blocks are
// evicted once the cap is reached. Values <= 0 disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *BlockCache) {
		c.maxBytes = n
	}
}

// WithShardPrefixLen sets the number of hex characters used for
// subdirectory sharding. Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *BlockCache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the permissions of created cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *BlockCache) {
		c.dirPerm = mode
	}
}

// New creates a block cache rooted at dir, creating it when missing.
// Blocks already present in dir count towards the size limit.
func New(dir string, opts ...Option) (*BlockCache, error) {
	if dir == "" {
		return nil, errors.New("block cache: dir is empty")
	}
	c := &BlockCache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("block cache: shard prefix length must be >= 0")
	}
	if c.maxBytes < 0 {
		return nil, errors.New("block cache: max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}
	c.bytes.Store(size)
	return c, nil
}

// Dir returns the cache root directory.
func (c *BlockCache) Dir() string {
	return c.dir
}

// Wrap returns a ByteSource that serves reads of src from cached blocks.
// The source must report an identity through cache.Identifier or
// cache.WithSourceID.
func (c *BlockCache) Wrap(src cache.ByteSource, opts ...cache.WrapOption) (cache.ByteSource, error) {
	if src == nil {
		return nil, errors.New("block cache: source is nil")
	}
	cfg := cache.DefaultWrapConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.BlockSize <= 0:
		return nil, errors.New("block cache: block size must be > 0")
	case cfg.BlockSize > maxBlockSize:
		return nil, fmt.Errorf("block cache: block size %d exceeds %d", cfg.BlockSize, maxBlockSize)
	case cfg.MaxBlocksPerRead < 0:
		return nil, errors.New("block cache: max blocks per read must be >= 0")
	}
	id := cfg.SourceIDFor(src)
	if id == "" {
		return nil, errors.New("block cache: source has no id")
	}
	return &cachedSource{
		src:              src,
		cache:            c,
		id:               id,
		blockSize:        cfg.BlockSize,
		maxBlocksPerRead: cfg.MaxBlocksPerRead,
	}, nil
}

// MaxBytes returns the configured size limit (0 = unlimited).
func (c *BlockCache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the current size of cached blocks.
func (c *BlockCache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Prune evicts the oldest blocks until the cache is at or below
// targetBytes and returns the number of bytes freed.
func (c *BlockCache) Prune(targetBytes int64) (int64, error) {
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	freed, remaining, err := pruneDir(c.dir, max(targetBytes, 0))
	if err != nil {
		return freed, err
	}
	c.bytes.Store(remaining)
	return freed, nil
}

// block returns the cached block or fetches and stores it. Concurrent
// requests for the same block share one fetch.
func (c *BlockCache) block(key string, length int64, fetch func() ([]byte, error)) ([]byte, error) {
	v, err, _ := c.fetches.Do(key, func() (any, error) {
		path := c.path(key)
		data, err := os.ReadFile(path)
		switch {
		case err == nil && int64(len(data)) == length:
			return data, nil
		case err == nil:
			// Stale or torn block.
			c.bytes.Add(-int64(len(data)))
			_ = os.Remove(path)
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}

		data, err = fetch()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) != length {
			return nil, io.ErrUnexpectedEOF
		}
		// A failed store still serves the read.
		_ = c.store(path, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *BlockCache) store(path string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	ok, err := c.reserve(int64(len(data)))
	if err != nil || !ok {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "block-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		}
		return err
	}
	c.bytes.Add(int64(len(data)))
	return nil
}

// reserve reports whether need more bytes fit, pruning when over the limit.
func (c *BlockCache) reserve(need int64) (bool, error) {
	if c.maxBytes <= 0 {
		return true, nil
	}
	if need > c.maxBytes {
		return false, nil
	}
	if c.SizeBytes()+need <= c.maxBytes {
		return true, nil
	}
	if _, err := c.Prune(c.maxBytes - need); err != nil {
		return false, err
	}
	return c.SizeBytes()+need <= c.maxBytes, nil
}

// blockKey derives the hex key of a block from the source identity and
// the block geometry.
func blockKey(id string, blockSize, index int64) string {
	d := digest.Canonical.Digester()
	h := d.Hash()
	h.Write([]byte(id))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(blockSize))
	binary.BigEndian.PutUint64(buf[8:], uint64(index))
	h.Write(buf[:])
	return d.Digest().Encoded()
}

func (c *BlockCache) path(key string) string {
	if c.shardPrefixLen <= 0 {
		return filepath.Join(c.dir, key)
	}
	return filepath.Join(c.dir, key[:min(c.shardPrefixLen, len(key))], key)
}
