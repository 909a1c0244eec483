package dbtype

// EntryInfo describes one archive entry without its payload.
type EntryInfo struct {
	// Name is the entry name as stored in the archive (e.g. "map001.bin").
	Name string

	// Length is the number of payload bytes in the stream section.
	// For compressed entries this is the compressed size.
	Length uint64

	// Storage reports whether the payload is stored compressed.
	Storage Storage
}
