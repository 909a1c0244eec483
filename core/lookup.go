package zsdb

import (
	"bytes"
	"fmt"
	"io/fs"
	"iter"
	"sort"

	"github.com/meigma/zsdb/core/internal/codec"
	"github.com/meigma/zsdb/core/internal/sizing"
)

// Lookup returns the payload stored under name.
//
// ok is false when no entry has that exact name, and also when the payload
// cannot be read or decompressed; such failures are logged at debug level.
// A partial payload is never returned. An empty entry yields an empty,
// non-nil slice without reading the stream section.
func (r *Reader) Lookup(name string) (data []byte, ok bool) {
	_, data, ok = r.LookupPrefix(name, 0)
	return data, ok
}

// LookupPrefix returns the first entry whose name matches query on the first
// n bytes, together with the stored name.
//
// Both the query and the stored names are truncated to at most n bytes
// before comparing, the way strncmp compares NUL-terminated strings. A query
// shorter than n therefore only matches a stored name equal to it, and a
// stored name shorter than n only matches a query equal to it. n <= 0 asks
// for an exact match. An empty query never matches.
func (r *Reader) LookupPrefix(query string, n int) (name string, data []byte, ok bool) {
	i, found := r.search([]byte(query), n)
	if !found {
		return "", nil, false
	}
	e := &r.entries[i]
	data, err := r.payload(e)
	if err != nil {
		r.log().Debug("lookup failed", "name", string(e.name), "error", err)
		return "", nil, false
	}
	return string(e.name), data, true
}

// Entry returns the metadata of the entry with the given name without
// reading its payload.
func (r *Reader) Entry(name string) (EntryInfo, bool) {
	i, found := r.search([]byte(name), 0)
	if !found {
		return EntryInfo{}, false
	}
	return r.entries[i].info(), true
}

// ContentSize returns the decompressed payload size of the named entry.
// For compressed entries only the frame header is read.
func (r *Reader) ContentSize(name string) (uint64, error) {
	e, ok := r.lookupName(name)
	if !ok {
		return 0, &fs.PathError{Op: "size", Path: name, Err: fs.ErrNotExist}
	}
	return r.contentSize(e)
}

// Entries returns an iterator over every entry in name order.
// The iterator can be ranged over any number of times.
func (r *Reader) Entries() iter.Seq[EntryInfo] {
	return func(yield func(EntryInfo) bool) {
		for i := range r.entries {
			if !yield(r.entries[i].info()) {
				return
			}
		}
	}
}

// EntryList returns a snapshot of every entry in name order.
func (r *Reader) EntryList() []EntryInfo {
	list := make([]EntryInfo, len(r.entries))
	for i := range r.entries {
		list[i] = r.entries[i].info()
	}
	return list
}

func (e *indexEntry) info() EntryInfo {
	return EntryInfo{
		Name:    string(e.name),
		Length:  e.Length,
		Storage: e.Storage(),
	}
}

// search binary searches the index for the lower bound of query and then
// checks that the candidate actually matches.
func (r *Reader) search(query []byte, n int) (int, bool) {
	if len(query) == 0 {
		return 0, false
	}
	q := truncate(query, n)
	i := sort.Search(len(r.entries), func(i int) bool {
		return bytes.Compare(truncate(r.entries[i].name, n), q) >= 0
	})
	if i == len(r.entries) || !bytes.Equal(truncate(r.entries[i].name, n), q) {
		return 0, false
	}
	return i, true
}

// truncate returns the first n bytes of b, or b itself when n <= 0.
func truncate(b []byte, n int) []byte {
	if n <= 0 || len(b) <= n {
		return b
	}
	return b[:n]
}

// payload reads the stored bytes of e and decompresses them if needed.
func (r *Reader) payload(e *indexEntry) ([]byte, error) {
	if e.Length == 0 {
		return []byte{}, nil
	}
	if r.maxEntrySize != 0 && e.Length > r.maxEntrySize {
		return nil, fmt.Errorf("%w: entry of %d bytes exceeds limit %d", ErrSizeOverflow, e.Length, r.maxEntrySize)
	}
	off, ok := sizing.AddUint64(r.header.StreamOffset, e.Offset)
	if !ok {
		return nil, ErrSizeOverflow
	}
	raw, err := r.readAt(off, e.Length)
	if err != nil {
		return nil, err
	}
	if e.Storage() != StorageCompressed {
		return raw, nil
	}
	if r.maxEntrySize != 0 {
		declared, err := codec.FrameContentSize(raw)
		if err != nil {
			return nil, err
		}
		if declared > r.maxEntrySize {
			return nil, fmt.Errorf("%w: entry decompresses to %d bytes, limit %d", ErrSizeOverflow, declared, r.maxEntrySize)
		}
	}
	return r.payloads.Decompress(raw)
}

// contentSize returns the payload size of e after decompression. For
// compressed entries only the frame header is read.
func (r *Reader) contentSize(e *indexEntry) (uint64, error) {
	if e.Length == 0 || e.Storage() != StorageCompressed {
		return e.Length, nil
	}
	off, ok := sizing.AddUint64(r.header.StreamOffset, e.Offset)
	if !ok {
		return 0, ErrSizeOverflow
	}
	head, err := r.readAt(off, min(e.Length, maxFrameHeaderSize))
	if err != nil {
		return 0, err
	}
	return codec.FrameContentSize(head)
}

// maxFrameHeaderSize is the largest zstd frame header: magic, descriptor,
// window, a 4-byte dictionary ID and an 8-byte content size.
const maxFrameHeaderSize = 18
