package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/meigma/zsdb"
)

// listEntry is one line of `list --json` output.
type listEntry struct {
	Name    string `json:"name"`
	Length  uint64 `json:"length"`
	Storage string `json:"storage"`
}

func runList(_ context.Context, a *app, args []string) error {
	flags := newFlagSet(a, "list")
	asJSON := flags.Bool("json", false, "print one JSON object per entry")
	rest, err := parseFlags(flags, args, 1, 1)
	if err != nil {
		return err
	}

	r, err := zsdb.Open(rest[0], zsdb.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer r.Close()

	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		for e := range r.Entries() {
			if err := enc.Encode(listEntry{Name: e.Name, Length: e.Length, Storage: e.Storage.String()}); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLENGTH\tSTORAGE")
	for e := range r.Entries() {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Name, e.Length, e.Storage)
	}
	return tw.Flush()
}

func runGet(_ context.Context, a *app, args []string) error {
	flags := newFlagSet(a, "get")
	prefix := flags.Int("prefix", 0, "match the first N bytes of the name instead of the whole name")
	output := flags.StringP("output", "o", "", "write the entry to this file instead of stdout")
	rest, err := parseFlags(flags, args, 2, 2)
	if err != nil {
		return err
	}

	r, err := zsdb.Open(rest[0], zsdb.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer r.Close()

	name, data, ok := r.LookupPrefix(rest[1], *prefix)
	if !ok {
		return fmt.Errorf("entry %q not found", rest[1])
	}
	a.logger.Info("entry found", "name", name, "bytes", len(data))

	if *output != "" {
		return os.WriteFile(*output, data, 0o644)
	}
	_, err = a.stdout.Write(data)
	return err
}

func runExtract(ctx context.Context, a *app, args []string) error {
	flags := newFlagSet(a, "extract")
	overwrite := flags.Bool("overwrite", false, "replace existing files")
	workers := flags.Int("workers", 0, "entries written in parallel (default 4)")
	rest, err := parseFlags(flags, args, 2, -1)
	if err != nil {
		return err
	}

	r, err := zsdb.Open(rest[0], zsdb.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer r.Close()

	opts := []zsdb.ExtractOption{
		zsdb.ExtractWithOverwrite(*overwrite),
		zsdb.ExtractWithWorkers(*workers),
		zsdb.ExtractWithProgress(func(ev zsdb.ProgressEvent) {
			a.logger.Debug("extracted", "name", ev.Name, "files_done", ev.FilesDone, "files_total", ev.FilesTotal)
		}),
	}
	if names := rest[2:]; len(names) > 0 {
		opts = append(opts, zsdb.ExtractWithNames(names...))
	}
	stats, err := r.Extract(ctx, rest[1], opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "extracted %d files (%d bytes), %d existing skipped\n", stats.Files, stats.Bytes, stats.Existing)
	return nil
}
