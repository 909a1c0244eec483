package platform

import (
	"io/fs"
	"os"
)

// sameFile returns ErrSymlink unless f is the file described by checked.
func sameFile(f *os.File, checked fs.FileInfo) error {
	opened, err := f.Stat()
	if err != nil {
		return err
	}
	if !os.SameFile(opened, checked) {
		return ErrSymlink
	}
	return nil
}
