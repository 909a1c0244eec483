package zsdb

import "log/slog"

// DefaultMaxFiles is the default limit used when no BuildWithMaxFiles option is set.
const DefaultMaxFiles = 200_000

// DefaultRatio is the default compression acceptance threshold.
const DefaultRatio = 0.9

// buildConfig holds configuration for archive building.
type buildConfig struct {
	pattern         string
	patternSet      bool
	dictPath        string
	dict            []byte
	ratio           float64
	skipCompression []SkipCompressionFunc
	maxFiles        int
	maxFileSize     uint64
	logger          *slog.Logger
	progress        ProgressFunc
}

// BuildOption configures archive building.
type BuildOption func(*buildConfig)

// BuildWithPattern selects source files whose base name fully matches the
// regular expression expr. By default every regular file is included.
func BuildWithPattern(expr string) BuildOption {
	return func(cfg *buildConfig) {
		cfg.pattern = expr
		cfg.patternSet = true
	}
}

// BuildWithDictionaryFile compresses payloads against the dictionary stored
// at path. The file holds either a formatted zstd dictionary or raw content.
func BuildWithDictionaryFile(path string) BuildOption {
	return func(cfg *buildConfig) {
		cfg.dictPath = path
	}
}

// BuildWithDictionary compresses payloads against dict, a formatted zstd
// dictionary or raw content. It takes precedence over BuildWithDictionaryFile.
func BuildWithDictionary(dict []byte) BuildOption {
	return func(cfg *buildConfig) {
		cfg.dict = dict
	}
}

// BuildWithRatio sets the acceptance threshold for compressed payloads:
// a file is stored compressed only when compressed/original < r.
// r must be in (0, 1]; the default is DefaultRatio.
func BuildWithRatio(r float64) BuildOption {
	return func(cfg *buildConfig) {
		cfg.ratio = r
	}
}

// BuildWithSkipCompression adds predicates that decide to store a file raw
// without attempting compression. If any predicate returns true, compression
// is skipped for that file.
func BuildWithSkipCompression(fns ...SkipCompressionFunc) BuildOption {
	return func(cfg *buildConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// BuildWithMaxFiles limits the number of files included in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func BuildWithMaxFiles(n int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.maxFiles = n
	}
}

// BuildWithMaxFileSize skips source files larger than limit bytes.
// Zero disables the limit.
func BuildWithMaxFileSize(limit uint64) BuildOption {
	return func(cfg *buildConfig) {
		cfg.maxFileSize = limit
	}
}

// BuildWithLogger sets the logger for build operations.
// If not set, logging is disabled.
func BuildWithLogger(logger *slog.Logger) BuildOption {
	return func(cfg *buildConfig) {
		cfg.logger = logger
	}
}

// BuildWithProgress sets a callback to receive progress updates.
func BuildWithProgress(fn ProgressFunc) BuildOption {
	return func(cfg *buildConfig) {
		cfg.progress = fn
	}
}
