package zsdb

import (
	"context"
	_ "crypto/sha256" // registers digest.Canonical
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/zsdb/core/internal/codec"
	"github.com/meigma/zsdb/core/internal/dbtype"
	"github.com/meigma/zsdb/core/internal/layout"
	"github.com/meigma/zsdb/core/internal/platform"
	"github.com/meigma/zsdb/core/internal/sizing"
	"github.com/meigma/zsdb/core/internal/write"
)

// BuildResult describes a written archive.
type BuildResult struct {
	// Path is the archive file written.
	Path string

	// Header is the header written at the start of the archive.
	Header Header

	// Files is the number of entries in the archive.
	Files int

	// Compressed is the number of entries stored compressed.
	Compressed int

	// Skipped is the number of matching source files left out because they
	// could not be read or compressed.
	Skipped int

	// Digest is the sha256 digest of the archive bytes.
	Digest digest.Digest
}

// Build creates an archive at destPath from the regular files directly under
// sourceDir.
//
// Subdirectories are not descended into and symbolic links are not followed.
// Each non-empty file is compressed as its own zstd frame (against the
// shared dictionary when one is configured) and stored compressed only when
// the compressed size divided by the original size is below the configured
// ratio; otherwise it is stored raw. Empty files are recorded with a zero
// length. A file that cannot be read or compressed is skipped with a
// warning and counted in BuildResult.Skipped.
//
// Entries are sorted by name, so the output is byte-identical for identical
// inputs. The whole archive is assembled in memory and then written to
// destPath, which is created or truncated; on a write failure the partial
// file is removed.
//
// The context is checked between files.
func Build(ctx context.Context, destPath, sourceDir string, opts ...BuildOption) (*BuildResult, error) {
	cfg := buildConfig{ratio: DefaultRatio}
	for _, opt := range opts {
		opt(&cfg)
	}
	if math.IsNaN(cfg.ratio) || cfg.ratio <= 0 || cfg.ratio > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRatio, cfg.ratio)
	}

	b := &builder{cfg: cfg, logger: cfg.logger}
	if err := b.compilePattern(); err != nil {
		return nil, err
	}
	if err := b.loadDictionary(); err != nil {
		return nil, err
	}

	payloads, err := codec.NewEncoder(b.dict)
	if err != nil {
		return nil, err
	}
	defer payloads.Close()
	sections, err := codec.NewEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer sections.Close()

	b.log().Info("building archive",
		"source", sourceDir,
		"dest", destPath,
		"ratio", cfg.ratio,
		"dictionary", b.dict != nil)

	if err := b.collect(ctx, sourceDir, destPath, payloads); err != nil {
		return nil, err
	}

	a, err := b.assemble(sections)
	if err != nil {
		return nil, err
	}

	b.reportProgress(StageWriting, destPath, 0)
	dgst, err := writeArchive(destPath, a)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		Path:       destPath,
		Header:     a.header,
		Files:      len(b.entries),
		Compressed: b.compressed,
		Skipped:    b.skipped,
		Digest:     dgst,
	}
	b.log().Info("archive built",
		"dest", destPath,
		"files", result.Files,
		"compressed", result.Compressed,
		"skipped", result.Skipped,
		"stream_size", a.header.StreamLength,
		"digest", dgst.String())
	return result, nil
}

// builder holds state for archive building.
type builder struct {
	cfg     buildConfig
	logger  *slog.Logger
	pattern *regexp.Regexp
	dict    *codec.Dictionary

	entries    []pendingEntry
	names      layout.NameBuffer
	stream     []byte
	compressed int
	skipped    int
}

// pendingEntry is an entry collected before the index is sorted.
type pendingEntry struct {
	name  string
	entry layout.Entry
}

// log returns the logger, falling back to a discard logger if nil.
func (b *builder) log() *slog.Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

// reportProgress sends a progress event if a callback is configured.
func (b *builder) reportProgress(stage ProgressStage, name string, bytesDone uint64) {
	if b.cfg.progress == nil {
		return
	}
	b.cfg.progress(ProgressEvent{
		Stage:     stage,
		Name:      name,
		BytesDone: bytesDone,
		FilesDone: len(b.entries),
	})
}

func (b *builder) compilePattern() error {
	if !b.cfg.patternSet {
		return nil
	}
	re, err := regexp.Compile(`^(?:` + b.cfg.pattern + `)$`)
	if err != nil {
		return fmt.Errorf("compile pattern %q: %w", b.cfg.pattern, err)
	}
	b.pattern = re
	return nil
}

func (b *builder) loadDictionary() error {
	data := b.cfg.dict
	if data == nil && b.cfg.dictPath != "" {
		var err error
		data, err = os.ReadFile(b.cfg.dictPath)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrDictionary, b.cfg.dictPath, err)
		}
	}
	if data == nil {
		return nil
	}
	dict, err := codec.ParseDictionary(data)
	if err != nil {
		return err
	}
	b.dict = dict
	return nil
}

func (b *builder) maxFiles() int {
	switch {
	case b.cfg.maxFiles == 0:
		return DefaultMaxFiles
	case b.cfg.maxFiles < 0:
		return math.MaxInt
	default:
		return b.cfg.maxFiles
	}
}

// collect reads, compresses and appends every selected source file.
func (b *builder) collect(ctx context.Context, sourceDir, destPath string, enc *codec.Encoder) error {
	root, err := os.OpenRoot(sourceDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer root.Close()

	b.reportProgress(StageScanning, "", 0)
	dirents, err := fs.ReadDir(root.FS(), ".")
	if err != nil {
		return fmt.Errorf("%w: list %s: %w", ErrIO, sourceDir, err)
	}
	dest, _ := os.Stat(destPath) //nolint:errcheck // the archive usually does not exist yet
	maxFiles := b.maxFiles()

	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if b.pattern != nil && !b.pattern.MatchString(name) {
			continue
		}
		info, ok, err := write.ResolveEntry(root, d)
		if err != nil {
			b.log().Warn("skipped unreadable file", "name", name, "error", err)
			b.skipped++
			continue
		}
		if !ok {
			b.log().Debug("skipped non-regular file", "name", name)
			continue
		}
		if dest != nil && os.SameFile(dest, info) {
			b.log().Debug("skipped destination archive", "name", name)
			continue
		}
		if len(b.entries) >= maxFiles {
			return fmt.Errorf("%w: more than %d files", ErrTooManyFiles, maxFiles)
		}
		if err := b.add(root, name, info, enc); err != nil {
			if errors.Is(err, ErrSizeOverflow) {
				return err
			}
			if errors.Is(err, platform.ErrSymlink) {
				b.log().Debug("skipped symlink", "name", name)
				continue
			}
			b.log().Warn("skipped file", "name", name, "error", err)
			b.skipped++
		}
	}
	return nil
}

// add reads one source file and appends its payload and name.
func (b *builder) add(root *os.Root, name string, info fs.FileInfo, enc *codec.Encoder) error {
	data, err := write.ReadFile(root, name, b.cfg.maxFileSize)
	if err != nil {
		return err
	}

	payload, storage := data, StorageRaw
	if len(data) > 0 && !write.ShouldSkip(name, info, b.cfg.skipCompression) {
		compressed, err := enc.Compress(data)
		if err != nil {
			return fmt.Errorf("compress %s: %w", name, err)
		}
		if float64(len(compressed))/float64(len(data)) < b.cfg.ratio {
			payload, storage = compressed, StorageCompressed
		}
	}

	offset := uint64(len(b.stream))
	if _, ok := sizing.AddUint64(offset, uint64(len(payload))); !ok {
		return fmt.Errorf("%w: stream section", ErrSizeOverflow)
	}
	nameOff, err := b.names.Append(name)
	if err != nil {
		return err
	}
	b.stream = append(b.stream, payload...)
	b.entries = append(b.entries, pendingEntry{
		name: name,
		entry: layout.Entry{
			Offset:    offset,
			Length:    uint64(len(payload)),
			FileName:  nameOff,
			Attribute: layout.AttributeFor(storage),
		},
	})
	if storage == StorageCompressed {
		b.compressed++
	}

	b.log().Debug("added file",
		"name", name,
		"size", len(data),
		"stored", len(payload),
		"storage", storage.String())
	b.reportProgress(StageCompressing, name, uint64(len(b.stream)))
	return nil
}

// archive is a fully assembled archive ready to be written.
type archive struct {
	header layout.Header
	parts  []archivePart
}

type archivePart struct {
	section dbtype.Section
	offset  uint64
	data    []byte
}

// assemble sorts the index, encodes the sections and places them.
func (b *builder) assemble(enc *codec.Encoder) (*archive, error) {
	slices.SortFunc(b.entries, func(x, y pendingEntry) int {
		return strings.Compare(x.name, y.name)
	})
	entries := make([]layout.Entry, len(b.entries))
	for i, e := range b.entries {
		entries[i] = e.entry
	}

	rawEntries, err := layout.EncodeEntries(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: encode entries: %w", ErrCompression, err)
	}
	entrySection, err := enc.Compress(rawEntries)
	if err != nil {
		return nil, &SectionError{Section: SectionEntry, Err: err}
	}
	nameSection, err := enc.Compress(b.names.Bytes())
	if err != nil {
		return nil, &SectionError{Section: SectionFileName, Err: err}
	}

	var dict []byte
	if b.dict != nil {
		dict = b.dict.Bytes()
	}

	h := layout.NewHeader()
	if err := h.Place(uint64(len(dict)), uint64(len(entrySection)), uint64(len(nameSection)), uint64(len(b.stream))); err != nil {
		return nil, err
	}
	h.EntryNum = uint64(len(entries))

	headerBytes, err := h.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	return &archive{
		header: h,
		parts: []archivePart{
			{SectionHeader, 0, headerBytes},
			{SectionDictionary, h.DictOffset, dict},
			{SectionEntry, h.EntryOffset, entrySection},
			{SectionFileName, h.FileNameOffset, nameSection},
			{SectionStream, h.StreamOffset, b.stream},
		},
	}, nil
}

// writeArchive writes a to path and returns the digest of the written bytes.
// The partial file is removed if any write fails.
func writeArchive(path string, a *archive) (dgst digest.Digest, err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("%w: create directory: %w", ErrIO, err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(path)
		}
	}()

	digester := digest.Canonical.Digester()
	w := io.MultiWriter(f, digester.Hash())
	for _, p := range a.parts {
		if len(p.data) == 0 {
			continue
		}
		if _, err := w.Write(p.data); err != nil {
			return "", &SectionError{
				Section: p.section,
				Offset:  p.offset,
				Length:  uint64(len(p.data)),
				Err:     fmt.Errorf("%w: %w", ErrIO, err),
			}
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %w", ErrIO, path, err)
	}
	return digester.Digest(), nil
}
