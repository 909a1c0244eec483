//go:build unix

package platform

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// ErrSymlink is returned when a source name resolves to a symbolic link.
var ErrSymlink = errors.New("symbolic links are not archived")

// OpenNoFollow opens name under root read-only without following a
// symbolic link. Returns ErrSymlink if name is a symbolic link.
//
// os.Root resolves links that stay inside the root even with O_NOFOLLOW,
// so the name is checked with Lstat and the opened file must be the one
// that was checked.
func OpenNoFollow(root *os.Root, name string) (*os.File, error) {
	before, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if before.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlink
		}
		return nil, err
	}
	if err := sameFile(f, before); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
