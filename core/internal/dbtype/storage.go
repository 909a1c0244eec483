package dbtype

// Storage identifies how an entry's payload is kept in the stream section.
type Storage uint8

const (
	// StorageRaw means the payload bytes are stored as-is.
	StorageRaw Storage = iota
	// StorageCompressed means the payload is a single zstd frame.
	StorageCompressed
)

// String returns the human-readable name of the storage form.
func (s Storage) String() string {
	switch s {
	case StorageRaw:
		return "raw"
	case StorageCompressed:
		return "zstd"
	default:
		return "unknown"
	}
}
