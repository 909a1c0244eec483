package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/zsdb/core/internal/dbtype"
)

// RawDictionaryID is the dictionary ID written into frames compressed with a
// raw-content dictionary. It must be non-zero: frames without a dictionary
// carry ID 0, and a dictionary registered under 0 would be applied to them.
const RawDictionaryID uint32 = 0x5A534442

// minRawDictionarySize is the smallest raw-content dictionary accepted.
const minRawDictionarySize = 8

var (
	dictMagic  = []byte{0x37, 0xA4, 0x30, 0xEC}
	frameMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// Dictionary is a parsed shared compression dictionary.
//
// Two encodings are accepted: formatted dictionaries as produced by
// "zstd --train" or TrainDictionary, and raw content used as match history.
type Dictionary struct {
	data      []byte
	id        uint32
	formatted bool
}

// ParseDictionary inspects b and returns a Dictionary. The slice is retained.
func ParseDictionary(b []byte) (*Dictionary, error) {
	if bytes.HasPrefix(b, dictMagic) {
		if len(b) < 8 {
			return nil, fmt.Errorf("%w: truncated dictionary header", dbtype.ErrDictionary)
		}
		id := binary.LittleEndian.Uint32(b[4:8])
		if id == 0 {
			return nil, fmt.Errorf("%w: dictionary id 0 is not supported", dbtype.ErrDictionary)
		}
		return &Dictionary{data: b, id: id, formatted: true}, nil
	}
	if len(b) < minRawDictionarySize {
		return nil, fmt.Errorf("%w: dictionary of %d bytes is too small", dbtype.ErrDictionary, len(b))
	}
	// A stored dictionary section that is a zstd frame is decompressed
	// on load, so raw content must not look like one.
	if IsFrame(b) {
		return nil, fmt.Errorf("%w: raw dictionary starts with a zstd frame magic", dbtype.ErrDictionary)
	}
	return &Dictionary{data: b, id: RawDictionaryID}, nil
}

// ID returns the dictionary ID frames compressed with d carry.
func (d *Dictionary) ID() uint32 {
	return d.id
}

// Formatted reports whether d is a formatted zstd dictionary.
func (d *Dictionary) Formatted() bool {
	return d.formatted
}

// Bytes returns the dictionary bytes as supplied.
func (d *Dictionary) Bytes() []byte {
	return d.data
}

// IsFrame reports whether b starts with a zstd frame magic number.
func IsFrame(b []byte) bool {
	return bytes.HasPrefix(b, frameMagic)
}
