package zsdb

import zsdbcore "github.com/meigma/zsdb/core"

// Errors re-exported from core.
var (
	// ErrOpen is returned when the archive file is missing or unreadable.
	ErrOpen = zsdbcore.ErrOpen

	// ErrContext is returned when a compression or decompression context
	// could not be created.
	ErrContext = zsdbcore.ErrContext

	// ErrCorrupt is returned when a section is missing, mis-sized, out of
	// bounds, or the index sentinel does not match.
	ErrCorrupt = zsdbcore.ErrCorrupt

	// ErrIO is returned on a short read or short write of a section.
	ErrIO = zsdbcore.ErrIO

	// ErrCompression is returned when the engine fails to compress or decompress.
	ErrCompression = zsdbcore.ErrCompression

	// ErrSizeOverflow is returned when a size does not fit the target integer type.
	ErrSizeOverflow = zsdbcore.ErrSizeOverflow

	// ErrTooManyFiles is returned when the file count exceeds the configured limit.
	ErrTooManyFiles = zsdbcore.ErrTooManyFiles

	// ErrInvalidRatio is returned when a compression ratio is outside (0, 1].
	ErrInvalidRatio = zsdbcore.ErrInvalidRatio

	// ErrDictionary is returned when a dictionary cannot be parsed or trained.
	ErrDictionary = zsdbcore.ErrDictionary
)
