package zsdb

import (
	"context"
	_ "crypto/sha256" // registers digest.Canonical
	"fmt"
	"iter"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"

	zsdbcore "github.com/meigma/zsdb/core"
	"github.com/meigma/zsdb/core/cache"
	zsdbhttp "github.com/meigma/zsdb/core/http"
)

// InspectResult summarizes an archive without reading its payloads.
//
// It holds the archive open; call Close when done.
type InspectResult struct {
	reader *Reader
	target string
	remote bool
	size   int64
	digest digest.Digest

	// Lazy computed stats
	statsOnce        sync.Once
	totalStoredSize  uint64
	totalSize        uint64
	compressedCount  int
	compressionRatio float64
	statsErr         error
}

// Target returns the path or URL that was inspected.
func (r *InspectResult) Target() string {
	return r.target
}

// Remote reports whether the archive was read over HTTP.
func (r *InspectResult) Remote() bool {
	return r.remote
}

// Reader returns the opened archive.
func (r *InspectResult) Reader() *Reader {
	return r.reader
}

// Header returns the archive header.
func (r *InspectResult) Header() Header {
	return r.reader.Header()
}

// Size returns the archive size in bytes.
func (r *InspectResult) Size() int64 {
	return r.size
}

// Digest returns the sha256 digest of the archive file.
// It is empty for remote archives and when InspectWithSkipDigest is set.
func (r *InspectResult) Digest() digest.Digest {
	return r.digest
}

// FileCount returns the number of entries in the archive.
func (r *InspectResult) FileCount() int {
	return r.reader.Len()
}

// HasDictionary reports whether the archive carries a shared dictionary.
func (r *InspectResult) HasDictionary() bool {
	return r.reader.HasDictionary()
}

// Entries returns an iterator over every entry in name order.
func (r *InspectResult) Entries() iter.Seq[EntryInfo] {
	return r.reader.Entries()
}

// TotalStoredSize returns the sum of all payload sizes in the stream section.
func (r *InspectResult) TotalStoredSize() (uint64, error) {
	r.computeStats()
	return r.totalStoredSize, r.statsErr
}

// TotalSize returns the sum of all decompressed payload sizes.
// The first call reads the frame header of every compressed entry; the
// result is cached.
func (r *InspectResult) TotalSize() (uint64, error) {
	r.computeStats()
	return r.totalSize, r.statsErr
}

// CompressedCount returns how many entries are stored compressed.
func (r *InspectResult) CompressedCount() int {
	r.computeStats()
	return r.compressedCount
}

// CompressionRatio returns the ratio of stored to decompressed size.
// Returns 1.0 if nothing is compressed or the archive has no payload bytes.
func (r *InspectResult) CompressionRatio() (float64, error) {
	r.computeStats()
	return r.compressionRatio, r.statsErr
}

// Close releases the archive.
func (r *InspectResult) Close() error {
	return r.reader.Close()
}

// computeStats computes aggregate statistics by iterating all entries.
func (r *InspectResult) computeStats() {
	r.statsOnce.Do(func() {
		for e := range r.reader.Entries() {
			r.totalStoredSize += e.Length
			if e.Storage != StorageCompressed {
				r.totalSize += e.Length
				continue
			}
			r.compressedCount++
			size, err := r.reader.ContentSize(e.Name)
			if err != nil {
				r.statsErr = fmt.Errorf("size of %s: %w", e.Name, err)
				return
			}
			r.totalSize += size
		}
		r.compressionRatio = 1.0
		if r.totalSize > 0 {
			r.compressionRatio = float64(r.totalStoredSize) / float64(r.totalSize)
		}
	})
}

// InspectOption configures an Inspect operation.
type InspectOption func(*inspectConfig)

type inspectConfig struct {
	skipDigest bool
	client     *http.Client
	headers    http.Header
	readerOpts []Option
	blockCache cache.BlockCache
}

// InspectWithSkipDigest skips hashing a local archive file.
func InspectWithSkipDigest() InspectOption {
	return func(cfg *inspectConfig) {
		cfg.skipDigest = true
	}
}

// InspectWithHTTPClient sets the client used for remote archives.
func InspectWithHTTPClient(client *http.Client) InspectOption {
	return func(cfg *inspectConfig) {
		cfg.client = client
	}
}

// InspectWithHeader sets a header on every request for remote archives.
func InspectWithHeader(key, value string) InspectOption {
	return func(cfg *inspectConfig) {
		if cfg.headers == nil {
			cfg.headers = make(http.Header)
		}
		cfg.headers.Set(key, value)
	}
}

// InspectWithReaderOptions sets options for opening the archive.
func InspectWithReaderOptions(opts ...Option) InspectOption {
	return func(cfg *inspectConfig) {
		cfg.readerOpts = append(cfg.readerOpts, opts...)
	}
}

// InspectWithBlockCache serves remote range reads through c. Repeated
// inspections of unchanged remote content then read only from the cache.
func InspectWithBlockCache(c cache.BlockCache) InspectOption {
	return func(cfg *inspectConfig) {
		cfg.blockCache = c
	}
}

// Inspect opens the archive at target, a file path or an http(s) URL, and
// returns its metadata.
//
// Opening validates the header and loads the index, so a corrupt archive
// fails here with ErrCorrupt. Payloads are not read. For local files the
// sha256 digest of the whole file is computed unless InspectWithSkipDigest
// is set. Remote archives are read with HTTP range requests bound to ctx.
func Inspect(ctx context.Context, target string, opts ...InspectOption) (*InspectResult, error) {
	cfg := inspectConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if isURL(target) {
		return inspectRemote(ctx, target, &cfg)
	}
	return inspectFile(ctx, target, &cfg)
}

func inspectRemote(ctx context.Context, url string, cfg *inspectConfig) (*InspectResult, error) {
	srcOpts := []zsdbhttp.Option{zsdbhttp.WithContext(ctx)}
	if cfg.client != nil {
		srcOpts = append(srcOpts, zsdbhttp.WithClient(cfg.client))
	}
	if cfg.headers != nil {
		srcOpts = append(srcOpts, zsdbhttp.WithHeaders(cfg.headers))
	}
	src, err := zsdbhttp.NewSource(url, srcOpts...)
	if err != nil {
		return nil, err
	}
	var bs ByteSource = src
	if cfg.blockCache != nil {
		if bs, err = cfg.blockCache.Wrap(src); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpen, err)
		}
	}
	r, err := zsdbcore.New(bs, cfg.readerOpts...)
	if err != nil {
		return nil, err
	}
	return &InspectResult{
		reader: r,
		target: url,
		remote: true,
		size:   src.Size(),
	}, nil
}

func inspectFile(ctx context.Context, path string, cfg *inspectConfig) (*InspectResult, error) {
	r, err := zsdbcore.Open(path, cfg.readerOpts...)
	if err != nil {
		return nil, err
	}
	result := &InspectResult{reader: r, target: path}

	info, err := os.Stat(path)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	result.size = info.Size()

	if !cfg.skipDigest {
		if err := ctx.Err(); err != nil {
			r.Close()
			return nil, err
		}
		dgst, err := fileDigest(path)
		if err != nil {
			r.Close()
			return nil, err
		}
		result.digest = dgst
	}
	return result, nil
}

func fileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer f.Close()
	dgst, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: hash archive: %w", ErrIO, err)
	}
	return dgst, nil
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
