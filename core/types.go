package zsdb

import (
	"io"

	"github.com/meigma/zsdb/core/internal/dbtype"
	"github.com/meigma/zsdb/core/internal/layout"
	"github.com/meigma/zsdb/core/internal/write"
)

// Re-export types from internal packages for public API.
type (
	// EntryInfo describes one archive entry without its payload.
	EntryInfo = dbtype.EntryInfo

	// Storage identifies how an entry's payload is stored.
	Storage = dbtype.Storage

	// Header locates every section of an archive.
	Header = layout.Header

	// Section names an on-disk archive section.
	Section = dbtype.Section

	// SectionError records a failure while loading or writing a section.
	SectionError = dbtype.SectionError

	// ProgressEvent represents a progress update during operations.
	ProgressEvent = dbtype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = dbtype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = dbtype.ProgressFunc

	// SkipCompressionFunc returns true when a file should be stored raw.
	// It is called once per file and should be inexpensive.
	SkipCompressionFunc = write.SkipCompressionFunc
)

// DefaultSkipCompression returns a SkipCompressionFunc that skips small files
// and known already-compressed extensions.
var DefaultSkipCompression = write.DefaultSkipCompression

// Re-export storage constants.
const (
	StorageRaw        = dbtype.StorageRaw
	StorageCompressed = dbtype.StorageCompressed
)

// Re-export section constants.
const (
	SectionHeader     = dbtype.SectionHeader
	SectionDictionary = dbtype.SectionDictionary
	SectionEntry      = dbtype.SectionEntry
	SectionFileName   = dbtype.SectionFileName
	SectionStream     = dbtype.SectionStream
)

// Re-export progress stage constants.
const (
	StageScanning    = dbtype.StageScanning
	StageCompressing = dbtype.StageCompressing
	StageWriting     = dbtype.StageWriting
	StageExtracting  = dbtype.StageExtracting
)

// Format constants.
const (
	// Magic identifies an archive file.
	Magic = layout.Magic

	// Version is the format version written by Build.
	Version = layout.Version

	// HeaderSize is the encoded size of the header in bytes.
	HeaderSize = layout.HeaderSize
)

// Sentinel errors re-exported from internal/dbtype.
var (
	ErrOpen         = dbtype.ErrOpen
	ErrContext      = dbtype.ErrContext
	ErrCorrupt      = dbtype.ErrCorrupt
	ErrIO           = dbtype.ErrIO
	ErrCompression  = dbtype.ErrCompression
	ErrSizeOverflow = dbtype.ErrSizeOverflow
	ErrTooManyFiles = dbtype.ErrTooManyFiles
	ErrInvalidRatio = dbtype.ErrInvalidRatio
	ErrDictionary   = dbtype.ErrDictionary
)

// ByteSource provides random access to archive bytes.
//
// Implementations exist for local files and HTTP range requests.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}
