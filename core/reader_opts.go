package zsdb

import "log/slog"

// DefaultMaxEntrySize is the default limit on a single payload, stored or
// decompressed (256MB).
const DefaultMaxEntrySize = 256 << 20

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for lookup failures and load diagnostics.
// By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithMaxEntrySize limits the stored and decompressed size of a single
// payload. Larger entries are reported as not found.
// Set limit to 0 to disable the limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(r *Reader) {
		r.maxEntrySize = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) Option {
	return func(r *Reader) {
		if n < 0 {
			n = 0
		}
		r.decoderConcurrency = n
	}
}

// WithDecoderLowmem sets whether the zstd decoder should use low-memory mode (default: false).
func WithDecoderLowmem(enabled bool) Option {
	return func(r *Reader) {
		r.decoderLowmem = enabled
	}
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

// defaultExtractWorkers is used when no ExtractWithWorkers option is set.
const defaultExtractWorkers = 4

type extractConfig struct {
	names     []string
	overwrite bool
	workers   int
	progress  ProgressFunc
}

// ExtractWithNames restricts extraction to the named entries.
// Every name must exist in the archive.
func ExtractWithNames(names ...string) ExtractOption {
	return func(c *extractConfig) {
		c.names = append(c.names, names...)
	}
}

// ExtractWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithWorkers sets the number of entries written in parallel.
// Values <= 0 use the default (4).
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithProgress sets a callback invoked after each written entry.
// The callback may be called from several goroutines.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}
