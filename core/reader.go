package zsdb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/meigma/zsdb/core/internal/codec"
	"github.com/meigma/zsdb/core/internal/dbtype"
	"github.com/meigma/zsdb/core/internal/layout"
	"github.com/meigma/zsdb/core/internal/sizing"
)

// Interface compliance.
var (
	_ fs.FS         = (*Reader)(nil)
	_ fs.StatFS     = (*Reader)(nil)
	_ fs.ReadFileFS = (*Reader)(nil)
	_ fs.ReadDirFS  = (*Reader)(nil)
)

// Reader provides lookups into an opened archive.
//
// The header, the entry index and the name buffer are loaded once when the
// Reader is created; payloads are read from the source and decompressed on
// every lookup. A Reader never changes after construction and is safe for
// concurrent use.
type Reader struct {
	src    ByteSource
	closer io.Closer // set when the Reader owns the source

	header  layout.Header
	entries []indexEntry
	names   []byte
	dict    *codec.Dictionary

	// sections decodes the entry and file name sections; payloads decodes
	// stream payloads through the dictionary when one is present.
	sections *codec.Decoder
	payloads *codec.Decoder

	maxEntrySize       uint64
	decoderConcurrency int
	decoderLowmem      bool
	logger             *slog.Logger
}

// indexEntry is a validated entry with its name resolved.
// name aliases the Reader's name buffer.
type indexEntry struct {
	layout.Entry
	name []byte
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// New opens an archive read through src.
//
// The header, dictionary, entry and file name sections are loaded and
// validated before New returns: section bounds, the index sentinel, name
// termination, payload bounds and name order are all checked. Any failure
// aborts with an error wrapping ErrContext or ErrCorrupt; section failures
// are reported as *SectionError. No partially loaded Reader is returned.
//
// The caller keeps ownership of src and must keep it open while the Reader
// is in use.
func New(src ByteSource, opts ...Option) (*Reader, error) {
	r := &Reader{
		src:                src,
		maxEntrySize:       DefaultMaxEntrySize,
		decoderConcurrency: 1,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.load(); err != nil {
		r.closeDecoders()
		return nil, err
	}
	r.log().Debug("archive opened",
		"entries", len(r.entries),
		"dictionary", r.dict != nil,
		"stream_size", r.header.StreamLength)
	return r, nil
}

// load runs the opening sequence.
func (r *Reader) load() error {
	size := r.src.Size()
	if size < 0 {
		return fmt.Errorf("%w: negative source size %d", ErrCorrupt, size)
	}

	sections, err := codec.NewDecoder(nil, r.decoderOptions(codec.DefaultMaxSize)...)
	if err != nil {
		return err
	}
	r.sections = sections

	if err := r.loadHeader(uint64(size)); err != nil {
		return err
	}
	if err := r.loadDictionary(); err != nil {
		return err
	}
	entries, err := r.loadEntries()
	if err != nil {
		return err
	}
	if err := r.loadNames(); err != nil {
		return err
	}
	return r.index(entries)
}

func (r *Reader) decoderOptions(maxSize uint64) []codec.DecoderOption {
	return []codec.DecoderOption{
		codec.WithMaxSize(maxSize),
		codec.WithConcurrency(r.decoderConcurrency),
		codec.WithLowmem(r.decoderLowmem),
	}
}

func (r *Reader) loadHeader(size uint64) error {
	buf, err := r.readSection(layout.SectionSpan{Section: dbtype.SectionHeader, Length: layout.HeaderSize})
	if err != nil {
		return err
	}
	if err := r.header.UnmarshalBinary(buf); err != nil {
		return sectionError(dbtype.SectionHeader, 0, layout.HeaderSize, err)
	}
	if err := r.header.Validate(size); err != nil {
		var se *dbtype.SectionError
		if errors.As(err, &se) {
			return err
		}
		return sectionError(dbtype.SectionHeader, 0, layout.HeaderSize, err)
	}
	return nil
}

func (r *Reader) loadDictionary() error {
	span := r.span(dbtype.SectionDictionary)
	if span.Length == 0 {
		r.payloads = r.sections
		return nil
	}
	raw, err := r.readSection(span)
	if err != nil {
		return err
	}
	if codec.IsFrame(raw) {
		raw, err = r.sections.Decompress(raw)
		if err != nil {
			return corruptSection(span, err)
		}
	}
	dict, err := codec.ParseDictionary(raw)
	if err != nil {
		return corruptSection(span, err)
	}
	payloads, err := codec.NewDecoder(dict, r.decoderOptions(r.payloadDecoderLimit())...)
	if err != nil {
		return corruptSection(span, err)
	}
	r.dict = dict
	r.payloads = payloads
	return nil
}

// payloadDecoderLimit is the frame size limit of the payload decoder. The
// entry section is decoded through it as well, so it is never lower than
// the section limit; WithMaxEntrySize is enforced per lookup.
func (r *Reader) payloadDecoderLimit() uint64 {
	if r.maxEntrySize == 0 {
		return 0
	}
	return max(r.maxEntrySize, codec.DefaultMaxSize)
}

func (r *Reader) loadEntries() ([]layout.Entry, error) {
	span := r.span(dbtype.SectionEntry)
	if span.Length == 0 {
		// Validate rejected EntryNum != 0 without a section.
		return nil, nil
	}
	want, err := r.header.EntrySectionSize()
	if err != nil {
		return nil, corruptSection(span, err)
	}
	if want > codec.DefaultMaxSize {
		return nil, corruptSection(span, fmt.Errorf("%d entries exceed the index size limit", r.header.EntryNum))
	}
	raw, err := r.readSection(span)
	if err != nil {
		return nil, err
	}
	declared, err := codec.FrameContentSize(raw)
	if err != nil {
		return nil, corruptSection(span, err)
	}
	if declared != want {
		return nil, corruptSection(span, fmt.Errorf("entry section declares %d bytes, want %d for %d entries", declared, want, r.header.EntryNum))
	}
	decoded, err := r.payloads.Decompress(raw)
	if err != nil {
		return nil, corruptSection(span, err)
	}
	entries, err := layout.DecodeEntries(decoded, r.header.EntryNum)
	if err != nil {
		return nil, corruptSection(span, err)
	}
	return entries, nil
}

func (r *Reader) loadNames() error {
	span := r.span(dbtype.SectionFileName)
	if span.Length == 0 {
		return nil
	}
	raw, err := r.readSection(span)
	if err != nil {
		return err
	}
	names, err := r.sections.Decompress(raw)
	if err != nil {
		return corruptSection(span, err)
	}
	r.names = names
	return nil
}

// index validates every entry and resolves its name.
func (r *Reader) index(entries []layout.Entry) error {
	span := r.span(dbtype.SectionEntry)
	r.entries = make([]indexEntry, len(entries))
	var prev []byte
	for i, e := range entries {
		if e.Attribute&^layout.AttrCompressed != 0 {
			return corruptSection(span, fmt.Errorf("entry %d: reserved attribute bits %#x", i, e.Attribute))
		}
		if !sizing.Within(e.Offset, e.Length, r.header.StreamLength) {
			return corruptSection(span, fmt.Errorf("entry %d: payload [%d, +%d) outside stream of %d bytes", i, e.Offset, e.Length, r.header.StreamLength))
		}
		name, err := layout.NameAt(r.names, e.FileName)
		if err != nil {
			return corruptSection(span, fmt.Errorf("entry %d: %w", i, err))
		}
		if i > 0 && bytes.Compare(prev, name) >= 0 {
			return corruptSection(span, fmt.Errorf("entry %d: name %q not after %q", i, name, prev))
		}
		r.entries[i] = indexEntry{Entry: e, name: name}
		prev = name
	}
	return nil
}

func (r *Reader) span(s dbtype.Section) layout.SectionSpan {
	for _, sp := range r.header.Sections() {
		if sp.Section == s {
			return sp
		}
	}
	return layout.SectionSpan{Section: s}
}

// readSection reads a whole section from the source.
func (r *Reader) readSection(span layout.SectionSpan) ([]byte, error) {
	buf, err := r.readAt(span.Offset, span.Length)
	if err != nil {
		return nil, corruptSection(span, err)
	}
	return buf, nil
}

// readAt reads exactly length bytes at off.
func (r *Reader) readAt(off, length uint64) ([]byte, error) {
	n, err := sizing.ToInt(length, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	pos, err := sizing.ToInt64(off, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	read, err := r.src.ReadAt(buf, pos)
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("%w: read %d of %d bytes at offset %d: %w", ErrIO, read, n, off, err)
}

// Header returns a copy of the archive header.
func (r *Reader) Header() Header {
	return r.header
}

// HasDictionary reports whether the archive carries a shared dictionary.
func (r *Reader) HasDictionary() bool {
	return r.dict != nil
}

// Len returns the number of entries in the archive.
func (r *Reader) Len() int {
	return len(r.entries)
}

// Close releases the decompression contexts and, for a Reader created by
// Open, the archive file. The Reader must not be used afterwards.
func (r *Reader) Close() error {
	r.closeDecoders()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) closeDecoders() {
	if r.payloads != nil && r.payloads != r.sections {
		r.payloads.Close()
	}
	if r.sections != nil {
		r.sections.Close()
	}
	r.payloads = nil
	r.sections = nil
}

func sectionError(s dbtype.Section, off, length uint64, err error) error {
	return &dbtype.SectionError{Section: s, Offset: off, Length: length, Err: err}
}

// corruptSection reports err as a corruption of span. err stays in the chain.
func corruptSection(span layout.SectionSpan, err error) error {
	if !errors.Is(err, ErrCorrupt) {
		err = fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return sectionError(span.Section, span.Offset, span.Length, err)
}
