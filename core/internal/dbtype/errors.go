// Package dbtype holds the types shared by the archive reader, the builder
// and their internal helpers.
package dbtype

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by the archive packages wraps one of these.
var (
	// ErrOpen is returned when the archive file is missing or unreadable.
	ErrOpen = errors.New("zsdb: open archive")

	// ErrContext is returned when a compression or decompression context
	// could not be created.
	ErrContext = errors.New("zsdb: compression context")

	// ErrCorrupt is returned when a section is missing, mis-sized, out of
	// bounds, or the index sentinel does not match.
	ErrCorrupt = errors.New("zsdb: corrupt archive")

	// ErrIO is returned on a short read or short write of a section.
	ErrIO = errors.New("zsdb: i/o")

	// ErrCompression is returned when the engine fails to compress or decompress.
	ErrCompression = errors.New("zsdb: compression")

	// ErrSizeOverflow is returned when a size does not fit the target integer type.
	ErrSizeOverflow = errors.New("zsdb: size overflow")

	// ErrTooManyFiles is returned when the file count exceeds the configured limit.
	ErrTooManyFiles = errors.New("zsdb: too many files")

	// ErrInvalidRatio is returned when a compression ratio is outside (0, 1].
	ErrInvalidRatio = errors.New("zsdb: invalid compression ratio")

	// ErrDictionary is returned when a dictionary cannot be parsed or trained.
	ErrDictionary = errors.New("zsdb: dictionary")
)

// Section names an on-disk archive section.
type Section uint8

const (
	SectionHeader Section = iota
	SectionDictionary
	SectionEntry
	SectionFileName
	SectionStream
)

// String returns the section name used in error messages.
func (s Section) String() string {
	switch s {
	case SectionHeader:
		return "header"
	case SectionDictionary:
		return "dictionary"
	case SectionEntry:
		return "entry"
	case SectionFileName:
		return "filename"
	case SectionStream:
		return "stream"
	default:
		return "unknown"
	}
}

// SectionError records a failure while loading or writing a section,
// together with where in the file it happened.
type SectionError struct {
	Section Section
	Offset  uint64
	Length  uint64
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("%s section (off=%d, len=%d): %v", e.Section, e.Offset, e.Length, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}
