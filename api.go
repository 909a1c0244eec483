package zsdb

import (
	"context"

	zsdbcore "github.com/meigma/zsdb/core"
)

// Open opens the archive file at path for reading.
// Close the Reader to release the file.
func Open(path string, opts ...Option) (*Reader, error) {
	return zsdbcore.Open(path, opts...)
}

// New opens an archive read through src. The caller keeps ownership of src.
func New(src ByteSource, opts ...Option) (*Reader, error) {
	return zsdbcore.New(src, opts...)
}

// Build writes an archive of the regular files directly inside sourceDir
// to destPath.
func Build(ctx context.Context, destPath, sourceDir string, opts ...BuildOption) (*BuildResult, error) {
	return zsdbcore.Build(ctx, destPath, sourceDir, opts...)
}

// TrainDictionary builds a formatted zstd dictionary from sample payloads.
func TrainDictionary(samples [][]byte, opts ...TrainOption) ([]byte, error) {
	return zsdbcore.TrainDictionary(samples, opts...)
}
