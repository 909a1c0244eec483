package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/zsdb/core/internal/dbtype"
)

// EntrySize is the encoded size of an Entry in bytes.
const EntrySize = 32

// AttrCompressed marks an entry whose payload is stored as a zstd frame.
// All other attribute bits are reserved.
const AttrCompressed uint64 = 1 << 0

// Sentinel field values. The sentinel entry follows the last real entry in
// the entry section and detects truncated or corrupted indexes.
const (
	sentinelOffset    = 0x0123456789ABCDEF
	sentinelLength    = 0xFEDCBA9876543210
	sentinelFileName  = 0x0123456789ABCDEF
	sentinelAttribute = 0xFEDCBA9876543210
)

// Entry is the fixed-size index record of one payload.
type Entry struct {
	// Offset is relative to the start of the stream section.
	Offset uint64
	// Length is the payload byte length; zero means an empty payload.
	Length uint64
	// FileName is a byte offset into the file name buffer.
	FileName uint64
	// Attribute holds storage flags.
	Attribute uint64
}

// Sentinel returns the poison entry appended to every entry section.
func Sentinel() Entry {
	return Entry{
		Offset:    sentinelOffset,
		Length:    sentinelLength,
		FileName:  sentinelFileName,
		Attribute: sentinelAttribute,
	}
}

// Storage returns the storage form encoded in the attribute.
func (e Entry) Storage() dbtype.Storage {
	if e.Attribute&AttrCompressed != 0 {
		return dbtype.StorageCompressed
	}
	return dbtype.StorageRaw
}

// AttributeFor returns the attribute bits that encode s.
func AttributeFor(s dbtype.Storage) uint64 {
	if s == dbtype.StorageCompressed {
		return AttrCompressed
	}
	return 0
}

// EncodeEntries serializes entries followed by the sentinel.
func EncodeEntries(entries []Entry) ([]byte, error) {
	buf := make([]byte, 0, (len(entries)+1)*EntrySize)
	buf, err := binary.Append(buf, binary.LittleEndian, entries)
	if err != nil {
		return nil, err
	}
	return binary.Append(buf, binary.LittleEndian, Sentinel())
}

// DecodeEntries parses a decompressed entry section holding num entries plus
// the sentinel. The sentinel is compared byte for byte and dropped.
func DecodeEntries(b []byte, num uint64) ([]Entry, error) {
	want := (num + 1) * EntrySize
	if num >= uint64(len(b)) || uint64(len(b)) != want {
		return nil, fmt.Errorf("%w: entry section is %d bytes, want %d for %d entries", dbtype.ErrCorrupt, len(b), want, num)
	}

	sentinel, err := binary.Append(nil, binary.LittleEndian, Sentinel())
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(b[len(b)-EntrySize:], sentinel) {
		return nil, fmt.Errorf("%w: index sentinel mismatch", dbtype.ErrCorrupt)
	}

	entries := make([]Entry, num)
	if _, err := binary.Decode(b[:len(b)-EntrySize], binary.LittleEndian, entries); err != nil {
		return nil, fmt.Errorf("%w: decode entries: %v", dbtype.ErrCorrupt, err)
	}
	return entries, nil
}
