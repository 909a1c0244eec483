// Package zsdb reads and writes ZSDB archives: single-file, read-mostly
// bundles of named binary resources with fast lookup by exact name or name
// prefix.
//
// An archive is laid out as
//
//	[Header][Dictionary][Entry section][FileName section][Stream section]
//
// The entry and file name sections are zstd frames; the stream section is
// the concatenation of every payload, each stored raw or as its own zstd
// frame, optionally compressed against a shared dictionary. Entries are
// sorted by name so lookups are a binary search over the in-memory index.
// A fixed sentinel record closes the entry section and detects truncated
// or corrupted indexes when the archive is opened.
//
// Build creates an archive from the regular files of a directory. Open and
// New load one for reading; a Reader is immutable and safe for concurrent
// use. Reader implements fs.FS and related interfaces for stdlib
// compatibility.
package zsdb
