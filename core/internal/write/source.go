package write

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/meigma/zsdb/core/internal/platform"
	"github.com/meigma/zsdb/core/internal/sizing"
)

// ErrTooLarge is returned when a source file exceeds the per-file limit.
var ErrTooLarge = errors.New("source file too large")

// ResolveEntry filters a directory entry down to regular files.
// Symbolic links and anything else that is not a regular file return
// ok=false.
func ResolveEntry(root *os.Root, d fs.DirEntry) (info fs.FileInfo, ok bool, err error) {
	dtype := d.Type()
	if dtype&fs.ModeSymlink != 0 || d.IsDir() {
		return nil, false, nil
	}
	if dtype == 0 {
		// Some filesystems do not report the type in directory listings.
		info, err = root.Lstat(d.Name())
	} else {
		if !dtype.IsRegular() {
			return nil, false, nil
		}
		info, err = d.Info()
	}
	if err != nil {
		return nil, false, err
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}
	return info, true, nil
}

// ReadFile reads the regular file name under root, refusing symbolic links,
// files larger than maxSize (0 disables the limit) and files that change
// size while being read.
func ReadFile(root *os.Root, name string, maxSize uint64) ([]byte, error) {
	f, err := platform.OpenNoFollow(root, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", name)
	}
	if info.Size() < 0 {
		return nil, fmt.Errorf("negative file size: %s", name)
	}
	size := uint64(info.Size())
	if maxSize != 0 && size > maxSize {
		return nil, fmt.Errorf("%s: %w (%d > %d bytes)", name, ErrTooLarge, size, maxSize)
	}

	data, err := sizing.ReadAllWithLimit(f, size, ErrTooLarge)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if uint64(len(data)) != size {
		return nil, fmt.Errorf("file size changed while reading: %s: expected %d, got %d", name, size, len(data))
	}
	return data, nil
}
