package zsdb

import zsdbcore "github.com/meigma/zsdb/core"

// --- Re-exports from core ---

// Reader provides lookups into an opened archive.
type Reader = zsdbcore.Reader

// ByteSource provides random access to archive bytes.
type ByteSource = zsdbcore.ByteSource

// EntryInfo describes one archive entry without its payload.
type EntryInfo = zsdbcore.EntryInfo

// Storage identifies how an entry's payload is stored.
type Storage = zsdbcore.Storage

// Header locates every section of an archive.
type Header = zsdbcore.Header

// Section names an on-disk archive section.
type Section = zsdbcore.Section

// SectionError records a failure while loading or writing a section.
type SectionError = zsdbcore.SectionError

// BuildResult describes an archive written by Build.
type BuildResult = zsdbcore.BuildResult

// ExtractStats summarizes an extraction.
type ExtractStats = zsdbcore.ExtractStats

// SkipCompressionFunc returns true when a file should be stored raw.
type SkipCompressionFunc = zsdbcore.SkipCompressionFunc

// Option configures a Reader.
type Option = zsdbcore.Option

// BuildOption configures Build.
type BuildOption = zsdbcore.BuildOption

// ExtractOption configures Reader.Extract.
type ExtractOption = zsdbcore.ExtractOption

// TrainOption configures TrainDictionary.
type TrainOption = zsdbcore.TrainOption

// Storage constants.
const (
	StorageRaw        = zsdbcore.StorageRaw
	StorageCompressed = zsdbcore.StorageCompressed
)

// Section constants.
const (
	SectionHeader     = zsdbcore.SectionHeader
	SectionDictionary = zsdbcore.SectionDictionary
	SectionEntry      = zsdbcore.SectionEntry
	SectionFileName   = zsdbcore.SectionFileName
	SectionStream     = zsdbcore.SectionStream
)

// Format constants.
const (
	Magic            = zsdbcore.Magic
	Version          = zsdbcore.Version
	HeaderSize       = zsdbcore.HeaderSize
	DefaultExtension = zsdbcore.DefaultExtension
)

// Defaults re-exported from core.
const (
	DefaultRatio          = zsdbcore.DefaultRatio
	DefaultMaxFiles       = zsdbcore.DefaultMaxFiles
	DefaultMaxEntrySize   = zsdbcore.DefaultMaxEntrySize
	DefaultDictionarySize = zsdbcore.DefaultDictionarySize
	DefaultDictionaryID   = zsdbcore.DefaultDictionaryID
)

// Reader options re-exported from core.
var (
	WithLogger             = zsdbcore.WithLogger
	WithMaxEntrySize       = zsdbcore.WithMaxEntrySize
	WithDecoderConcurrency = zsdbcore.WithDecoderConcurrency
	WithDecoderLowmem      = zsdbcore.WithDecoderLowmem
)

// Build options re-exported from core.
var (
	BuildWithPattern         = zsdbcore.BuildWithPattern
	BuildWithDictionaryFile  = zsdbcore.BuildWithDictionaryFile
	BuildWithDictionary      = zsdbcore.BuildWithDictionary
	BuildWithRatio           = zsdbcore.BuildWithRatio
	BuildWithSkipCompression = zsdbcore.BuildWithSkipCompression
	BuildWithMaxFiles        = zsdbcore.BuildWithMaxFiles
	BuildWithMaxFileSize     = zsdbcore.BuildWithMaxFileSize
	BuildWithLogger          = zsdbcore.BuildWithLogger
	BuildWithProgress        = zsdbcore.BuildWithProgress
)

// Extract options re-exported from core.
var (
	ExtractWithNames     = zsdbcore.ExtractWithNames
	ExtractWithOverwrite = zsdbcore.ExtractWithOverwrite
	ExtractWithWorkers   = zsdbcore.ExtractWithWorkers
	ExtractWithProgress  = zsdbcore.ExtractWithProgress
)

// Dictionary training options re-exported from core.
var (
	TrainWithMaxSize = zsdbcore.TrainWithMaxSize
	TrainWithID      = zsdbcore.TrainWithID
)

// DefaultSkipCompression returns a SkipCompressionFunc that skips small files
// and known already-compressed extensions.
var DefaultSkipCompression = zsdbcore.DefaultSkipCompression
