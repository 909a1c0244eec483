package zsdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ExtractStats summarizes an extraction.
type ExtractStats struct {
	// Files is the number of entries written.
	Files int
	// Bytes is the number of payload bytes written.
	Bytes uint64
	// Existing is the number of entries skipped because the destination
	// file already existed.
	Existing int
}

// Extract writes archive entries as files under destDir, creating it if
// needed.
//
// Each file is written to a temp file in destDir and renamed into place.
// By default:
//   - every entry is extracted (use ExtractWithNames to select entries)
//   - existing files are skipped (use ExtractWithOverwrite to replace them)
//   - up to 4 entries are written in parallel (use ExtractWithWorkers)
//
// Entries whose names are not valid single path elements are rejected with
// fs.ErrInvalid before anything is written. A payload that cannot be read
// or decompressed fails the extraction.
func (r *Reader) Extract(ctx context.Context, destDir string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	workers := cfg.workers
	if workers <= 0 {
		workers = defaultExtractWorkers
	}

	entries, err := r.collectExtract(cfg.names)
	if err != nil {
		return ExtractStats{}, err
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return ExtractStats{}, fmt.Errorf("create destination: %w", err)
	}

	r.log().Debug("extracting entries", "dest", destDir, "entries", len(entries), "workers", workers)

	var files, existing atomic.Int64
	var written atomic.Uint64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, e := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := string(e.name)
			dest := filepath.Join(destDir, name)
			if !cfg.overwrite {
				if _, err := os.Lstat(dest); err == nil {
					existing.Add(1)
					return nil
				}
			}
			data, err := r.payload(e)
			if err != nil {
				return &fs.PathError{Op: "extract", Path: name, Err: fmt.Errorf("%w: %w", ErrCompression, err)}
			}
			if err := writeFileAtomic(dest, data, cfg.overwrite); err != nil {
				return &fs.PathError{Op: "extract", Path: name, Err: err}
			}
			n := files.Add(1)
			total := written.Add(uint64(len(data)))
			if cfg.progress != nil {
				cfg.progress(ProgressEvent{
					Stage:      StageExtracting,
					Name:       name,
					BytesDone:  total,
					FilesDone:  int(n),
					FilesTotal: len(entries),
				})
			}
			return nil
		})
	}
	err = g.Wait()
	stats := ExtractStats{
		Files:    int(files.Load()),
		Bytes:    written.Load(),
		Existing: int(existing.Load()),
	}
	if err != nil {
		return stats, err
	}
	return stats, ctx.Err()
}

// collectExtract resolves the entries to extract.
func (r *Reader) collectExtract(names []string) ([]*indexEntry, error) {
	var entries []*indexEntry
	if len(names) == 0 {
		entries = make([]*indexEntry, len(r.entries))
		for i := range r.entries {
			entries[i] = &r.entries[i]
		}
	} else {
		entries = make([]*indexEntry, 0, len(names))
		for _, name := range names {
			e, ok := r.lookupName(name)
			if !ok {
				return nil, &fs.PathError{Op: "extract", Path: name, Err: fs.ErrNotExist}
			}
			entries = append(entries, e)
		}
	}
	for _, e := range entries {
		if !isFileName(e.name) {
			return nil, &fs.PathError{Op: "extract", Path: string(e.name), Err: fs.ErrInvalid}
		}
	}
	return entries, nil
}

// writeFileAtomic writes data to a temp file next to target and renames it
// into place.
func writeFileAtomic(target string, data []byte, overwrite bool) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".zsdb-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	// On Windows, os.Rename fails if destination exists. Remove it first when
	// overwrite is enabled, but refuse to replace a directory with a file.
	if overwrite {
		if info, err := os.Lstat(target); err == nil && info.IsDir() {
			return errors.New("destination is a directory")
		}
		_ = os.Remove(target) // rename reports the failure if removal was needed
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("renaming to destination: %w", err)
	}
	success = true
	return nil
}
