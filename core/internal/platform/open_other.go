//go:build !unix

package platform

import (
	"errors"
	"io/fs"
	"os"
)

// ErrSymlink is returned when a source name resolves to a symbolic link.
var ErrSymlink = errors.New("symbolic links are not archived")

// OpenNoFollow opens name under root read-only without following a
// symbolic link. Returns ErrSymlink if name is a symbolic link.
//
// A link swapped in between the Lstat and the open is detected by
// comparing the opened file with the checked one.
func OpenNoFollow(root *os.Root, name string) (*os.File, error) {
	before, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if before.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	if err := sameFile(f, before); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
