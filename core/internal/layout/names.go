package layout

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/meigma/zsdb/core/internal/dbtype"
)

// NameBuffer accumulates NUL-terminated entry names.
type NameBuffer struct {
	buf []byte
}

// Append adds name and returns its offset in the buffer.
// Names must be non-empty and must not contain NUL.
func (b *NameBuffer) Append(name string) (uint64, error) {
	if name == "" || strings.IndexByte(name, 0) >= 0 {
		return 0, fmt.Errorf("invalid entry name %q", name)
	}
	off := uint64(len(b.buf))
	b.buf = append(b.buf, name...)
	b.buf = append(b.buf, 0)
	return off, nil
}

// Bytes returns the encoded buffer.
func (b *NameBuffer) Bytes() []byte {
	return b.buf
}

// Len returns the encoded buffer length.
func (b *NameBuffer) Len() int {
	return len(b.buf)
}

// NameAt returns the name starting at off in a decoded name buffer,
// without its terminator. The result aliases buf.
func NameAt(buf []byte, off uint64) ([]byte, error) {
	if off >= uint64(len(buf)) {
		return nil, fmt.Errorf("%w: name offset %d outside buffer of %d bytes", dbtype.ErrCorrupt, off, len(buf))
	}
	rest := buf[off:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return nil, fmt.Errorf("%w: name at offset %d is not terminated", dbtype.ErrCorrupt, off)
	}
	if end == 0 {
		return nil, fmt.Errorf("%w: empty name at offset %d", dbtype.ErrCorrupt, off)
	}
	return rest[:end:end], nil
}
