package zsdb

import (
	"fmt"
	"os"
)

// DefaultExtension is the conventional archive file extension.
const DefaultExtension = ".zsdb"

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
type fileSource struct {
	file *os.File
	size int64
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrOpen, f.Name(), err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrOpen, f.Name())
	}
	return &fileSource{file: f, size: info.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (fs *fileSource) Size() int64 {
	return fs.size
}

// Close closes the underlying file.
func (fs *fileSource) Close() error {
	return fs.file.Close()
}

// Open opens the archive at path for reading.
//
// The file is opened read-only and owned by the returned Reader;
// Close releases it. A missing or unreadable file returns an error
// wrapping ErrOpen. See New for the validation performed.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	source, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	r, err := New(source, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = source
	return r, nil
}

// Interface compliance for fileSource.
var _ ByteSource = (*fileSource)(nil)
