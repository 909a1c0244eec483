package dbtype

// ProgressEvent represents a progress update during archive building or extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Name is the entry currently being processed, if applicable.
	Name string

	// BytesDone is the number of bytes completed in the current operation.
	BytesDone uint64

	// FilesDone is the number of files completed.
	FilesDone int

	// FilesTotal is the total number of files.
	// Zero indicates the total is unknown.
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for build and extraction.
const (
	// StageScanning indicates the source directory is being listed.
	StageScanning ProgressStage = iota

	// StageCompressing indicates a source file has been read and encoded.
	StageCompressing

	// StageWriting indicates the archive sections are being written.
	StageWriting

	// StageExtracting indicates an entry has been written to disk.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageScanning:
		return "scanning"
	case StageCompressing:
		return "compressing"
	case StageWriting:
		return "writing"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Extraction may call it from several goroutines.
type ProgressFunc func(ProgressEvent)
