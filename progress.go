package zsdb

import zsdbcore "github.com/meigma/zsdb/core"

// Re-export progress types from core package.
type (
	// ProgressEvent represents a progress update during build or extraction.
	ProgressEvent = zsdbcore.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = zsdbcore.ProgressStage

	// ProgressFunc receives progress updates during operations.
	// Extraction may call it from several goroutines.
	ProgressFunc = zsdbcore.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageScanning indicates the source directory is being listed.
	StageScanning = zsdbcore.StageScanning

	// StageCompressing indicates a source file has been read and encoded.
	StageCompressing = zsdbcore.StageCompressing

	// StageWriting indicates the archive sections are being written.
	StageWriting = zsdbcore.StageWriting

	// StageExtracting indicates an entry has been written to disk.
	StageExtracting = zsdbcore.StageExtracting
)
