// Package write holds the per-file helpers used while building an archive:
// source file selection and reading, and skip-compression predicates.
package write

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// SkipCompressionFunc returns true when a file should be stored raw without
// attempting compression. It is called once per file and should be cheap.
type SkipCompressionFunc func(name string, info fs.FileInfo) bool

// DefaultSkipCompression returns a SkipCompressionFunc that skips files
// smaller than minSize and files whose extension marks already-compressed
// content.
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return func(name string, info fs.FileInfo) bool {
		if info != nil && minSize > 0 && info.Size() < minSize {
			return true
		}
		_, ok := compressedExts[strings.ToLower(filepath.Ext(name))]
		return ok
	}
}

// ShouldSkip reports whether any predicate asks to skip compression.
func ShouldSkip(name string, info fs.FileInfo, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn != nil && fn(name, info) {
			return true
		}
	}
	return false
}

// compressedExts lists extensions of formats that carry their own entropy
// coding; zstd rarely wins on them.
var compressedExts = map[string]struct{}{
	".7z":    {},
	".aac":   {},
	".avif":  {},
	".br":    {},
	".bz2":   {},
	".flac":  {},
	".gif":   {},
	".gz":    {},
	".jpeg":  {},
	".jpg":   {},
	".ktx2":  {},
	".lz4":   {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".png":   {},
	".webm":  {},
	".webp":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zsdb":  {},
	".zst":   {},
}
