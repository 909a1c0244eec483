package zsdb

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/meigma/zsdb/core/internal/sizing"
)

// Open implements fs.FS.
//
// The archive name space is flat: "." is the only directory and every entry
// is a regular file in it. The payload is read and decompressed when the file
// is opened. Names that are not valid single path elements return
// fs.ErrInvalid or fs.ErrNotExist, and so does an entry whose payload cannot
// be decoded.
func (r *Reader) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return &openDir{r: r}, nil
	}

	e, err := r.lookupFile("open", name)
	if err != nil {
		return nil, err
	}
	data, err := r.payload(e)
	if err != nil {
		return nil, undecodable("open", name, err)
	}
	return &entryFile{
		Reader: bytes.NewReader(data),
		info:   newFileInfo(e, int64(len(data))),
	}, nil
}

// Stat implements fs.StatFS.
//
// Stat reports the decompressed size of the entry. For compressed entries
// only the frame header is read from the stream section.
func (r *Reader) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return dirInfo{}, nil
	}
	e, err := r.lookupFile("stat", name)
	if err != nil {
		return nil, err
	}
	info, err := r.fileInfo(e)
	if err != nil {
		return nil, undecodable("stat", name, err)
	}
	return info, nil
}

// ReadFile implements fs.ReadFileFS.
//
// ReadFile reads and returns the entire payload of the named entry. Unlike
// Lookup it reports why a payload could not be decoded; the error matches
// both fs.ErrNotExist and the cause.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	e, err := r.lookupFile("readfile", name)
	if err != nil {
		return nil, err
	}
	data, err := r.payload(e)
	if err != nil {
		return nil, undecodable("readfile", name, err)
	}
	return data, nil
}

// undecodable reports an entry that exists in the index but whose payload
// cannot be served. It reads as missing through fs.FS and keeps the cause.
func undecodable(op, name string, err error) error {
	return &fs.PathError{Op: op, Path: name, Err: fmt.Errorf("%w: %w", fs.ErrNotExist, err)}
}

// ReadDir implements fs.ReadDirFS.
//
// ReadDir lists the entries of ".", sorted by name. Entries whose names are
// not valid single path elements are not listed.
func (r *Reader) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	if name != "." {
		if _, ok := r.lookupName(name); ok {
			return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
		}
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	entries := make([]fs.DirEntry, 0, len(r.entries))
	for i := range r.entries {
		e := &r.entries[i]
		if !isFileName(e.name) {
			continue
		}
		info, err := r.fileInfo(e)
		if err != nil {
			info = newFileInfo(e, 0)
		}
		entries = append(entries, &dirEntry{info: info, infoErr: err})
	}
	return entries, nil
}

// lookupFile resolves name to an entry visible through the fs.FS view.
func (r *Reader) lookupFile(op, name string) (*indexEntry, error) {
	e, ok := r.lookupName(name)
	if !ok || !isFileName(e.name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return e, nil
}

func (r *Reader) lookupName(name string) (*indexEntry, bool) {
	i, found := r.search([]byte(name), 0)
	if !found {
		return nil, false
	}
	return &r.entries[i], true
}

func (r *Reader) fileInfo(e *indexEntry) (fs.FileInfo, error) {
	size, err := r.contentSize(e)
	if err != nil {
		return nil, err
	}
	n, err := sizing.ToInt64(size, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	return newFileInfo(e, n), nil
}

// isFileName reports whether name can appear in the flat fs.FS view.
func isFileName(name []byte) bool {
	s := string(name)
	return fs.ValidPath(s) && s != "." && !strings.Contains(s, "/")
}

// entryFile is an opened entry. The payload is held in memory, so it
// supports seeking and random access.
type entryFile struct {
	*bytes.Reader
	info *fileInfo
}

func (f *entryFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *entryFile) Close() error                { return nil }

// fileInfo implements fs.FileInfo for entries.
type fileInfo struct {
	entry EntryInfo
	size  int64
}

func newFileInfo(e *indexEntry, size int64) *fileInfo {
	return &fileInfo{entry: e.info(), size: size}
}

func (fi *fileInfo) Name() string       { return fi.entry.Name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return false }

// Sys returns the EntryInfo of the entry.
func (fi *fileInfo) Sys() any { return fi.entry }

// dirInfo implements fs.FileInfo for the root directory.
type dirInfo struct{}

func (dirInfo) Name() string       { return "." }
func (dirInfo) Size() int64        { return 0 }
func (dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (dirInfo) ModTime() time.Time { return time.Time{} }
func (dirInfo) IsDir() bool        { return true }
func (dirInfo) Sys() any           { return nil }

// dirEntry implements fs.DirEntry by wrapping fs.FileInfo.
type dirEntry struct {
	info    fs.FileInfo
	infoErr error
}

func (de *dirEntry) Name() string               { return de.info.Name() }
func (de *dirEntry) IsDir() bool                { return de.info.IsDir() }
func (de *dirEntry) Type() fs.FileMode          { return de.info.Mode().Type() }
func (de *dirEntry) Info() (fs.FileInfo, error) { return de.info, de.infoErr }

// openDir implements fs.ReadDirFile for the root directory.
type openDir struct {
	r       *Reader
	entries []fs.DirEntry
	offset  int
	loaded  bool
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) { return dirInfo{}, nil }
func (d *openDir) Close() error                { return nil }

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		entries, err := d.r.ReadDir(".")
		if err != nil {
			return nil, err
		}
		d.entries = entries
		d.loaded = true
	}

	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return rest[:n], nil
}
