// Package layout defines the on-disk layout shared by the archive builder and
// reader:
//
//	[Header][Dictionary][Entry section][FileName section][Stream section]
//
// All integers are little-endian and every record is packed.
package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/zsdb/core/internal/dbtype"
	"github.com/meigma/zsdb/core/internal/sizing"
)

// Magic identifies an archive file.
const Magic = "ZSDB"

// Version is the current format version.
const Version uint32 = 1

// HeaderSize is the encoded size of a Header in bytes.
const HeaderSize = 80

// Header locates every section of an archive.
// A zero length marks a section as absent.
type Header struct {
	Magic   [4]byte
	Version uint32

	DictOffset uint64
	DictLength uint64

	EntryOffset uint64
	EntryLength uint64
	EntryNum    uint64

	FileNameOffset uint64
	FileNameLength uint64

	StreamOffset uint64
	StreamLength uint64
}

// NewHeader returns a header stamped with Magic and Version.
func NewHeader() Header {
	var h Header
	copy(h.Magic[:], Magic)
	h.Version = Version
	return h
}

// MarshalBinary encodes h into HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	return binary.Append(make([]byte, 0, HeaderSize), binary.LittleEndian, h)
}

// UnmarshalBinary decodes a header from the first HeaderSize bytes of b.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: header is %d bytes, want %d", dbtype.ErrCorrupt, len(b), HeaderSize)
	}
	if _, err := binary.Decode(b[:HeaderSize], binary.LittleEndian, h); err != nil {
		return fmt.Errorf("%w: decode header: %v", dbtype.ErrCorrupt, err)
	}
	return nil
}

// Validate checks the magic, the version and that every present section
// lies within a file of fileSize bytes.
func (h *Header) Validate(fileSize uint64) error {
	if string(h.Magic[:]) != Magic {
		return fmt.Errorf("%w: bad magic %q", dbtype.ErrCorrupt, h.Magic[:])
	}
	if h.Version == 0 || h.Version > Version {
		return fmt.Errorf("%w: unsupported version %d (max %d)", dbtype.ErrCorrupt, h.Version, Version)
	}
	for _, s := range h.Sections() {
		if s.Length == 0 {
			continue
		}
		if s.Offset < HeaderSize || !sizing.Within(s.Offset, s.Length, fileSize) {
			return &dbtype.SectionError{
				Section: s.Section,
				Offset:  s.Offset,
				Length:  s.Length,
				Err:     fmt.Errorf("%w: section outside file of %d bytes", dbtype.ErrCorrupt, fileSize),
			}
		}
	}
	if h.EntryLength == 0 && h.EntryNum != 0 {
		return fmt.Errorf("%w: %d entries declared without an entry section", dbtype.ErrCorrupt, h.EntryNum)
	}
	return nil
}

// SectionSpan is the position of one section.
type SectionSpan struct {
	Section dbtype.Section
	Offset  uint64
	Length  uint64
}

// Sections returns the position of each section in file order.
func (h *Header) Sections() []SectionSpan {
	return []SectionSpan{
		{dbtype.SectionDictionary, h.DictOffset, h.DictLength},
		{dbtype.SectionEntry, h.EntryOffset, h.EntryLength},
		{dbtype.SectionFileName, h.FileNameOffset, h.FileNameLength},
		{dbtype.SectionStream, h.StreamOffset, h.StreamLength},
	}
}

// EntrySectionSize returns the decompressed size of the entry section,
// which holds EntryNum entries plus the sentinel.
func (h *Header) EntrySectionSize() (uint64, error) {
	n, ok := sizing.AddUint64(h.EntryNum, 1)
	if !ok {
		return 0, dbtype.ErrSizeOverflow
	}
	size, ok := sizing.MulUint64(n, EntrySize)
	if !ok {
		return 0, dbtype.ErrSizeOverflow
	}
	return size, nil
}

// Place assigns consecutive offsets after the header to sections of the
// given lengths. A zero-length dictionary gets offset 0.
func (h *Header) Place(dictLen, entryLen, nameLen, streamLen uint64) error {
	next := uint64(HeaderSize)
	place := func(off, length *uint64, n uint64, optional bool) error {
		*length = n
		if optional && n == 0 {
			*off = 0
			return nil
		}
		*off = next
		end, ok := sizing.AddUint64(next, n)
		if !ok {
			return dbtype.ErrSizeOverflow
		}
		next = end
		return nil
	}
	if err := place(&h.DictOffset, &h.DictLength, dictLen, true); err != nil {
		return err
	}
	if err := place(&h.EntryOffset, &h.EntryLength, entryLen, false); err != nil {
		return err
	}
	if err := place(&h.FileNameOffset, &h.FileNameLength, nameLen, false); err != nil {
		return err
	}
	return place(&h.StreamOffset, &h.StreamLength, streamLen, false)
}
