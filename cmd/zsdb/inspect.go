package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/meigma/zsdb"
	"github.com/meigma/zsdb/core/cache/disk"
)

func runInspect(ctx context.Context, a *app, args []string) error {
	flags := newFlagSet(a, "inspect")
	headers := flags.StringArray("header", nil, "HTTP header KEY=VALUE sent with every request (repeatable)")
	cacheDir := flags.String("cache-dir", "", "cache remote archive blocks under `DIR`")
	cacheMax := flags.Int64("cache-max-bytes", 0, "evict cached blocks beyond `N` bytes (0 = unlimited)")
	rest, err := parseFlags(flags, args, 1, 1)
	if err != nil {
		return err
	}

	opts := []zsdb.InspectOption{zsdb.InspectWithReaderOptions(zsdb.WithLogger(a.logger))}
	for _, h := range *headers {
		key, value, ok := strings.Cut(h, "=")
		if !ok || key == "" {
			return usagef("invalid --header %q, want KEY=VALUE", h)
		}
		opts = append(opts, zsdb.InspectWithHeader(key, value))
	}

	if *cacheDir != "" {
		if *cacheMax < 0 {
			return usagef("--cache-max-bytes must be >= 0")
		}
		blocks, err := disk.New(*cacheDir, disk.WithMaxBytes(*cacheMax))
		if err != nil {
			return err
		}
		a.logger.Debug("using block cache", "dir", blocks.Dir(), "size", blocks.SizeBytes())
		opts = append(opts, zsdb.InspectWithBlockCache(blocks))
	}

	result, err := zsdb.Inspect(ctx, rest[0], opts...)
	if err != nil {
		return err
	}
	defer result.Close()

	total, err := result.TotalSize()
	if err != nil {
		return err
	}
	stored, err := result.TotalStoredSize()
	if err != nil {
		return err
	}
	ratio, err := result.CompressionRatio()
	if err != nil {
		return err
	}

	h := result.Header()
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "archive:\t%s\n", result.Target())
	fmt.Fprintf(tw, "size:\t%d\n", result.Size())
	if d := result.Digest(); d != "" {
		fmt.Fprintf(tw, "digest:\t%s\n", d)
	}
	fmt.Fprintf(tw, "version:\t%d\n", h.Version)
	fmt.Fprintf(tw, "entries:\t%d (%d compressed)\n", result.FileCount(), result.CompressedCount())
	fmt.Fprintf(tw, "dictionary:\t%s\n", section(h.DictOffset, h.DictLength))
	fmt.Fprintf(tw, "entry section:\t%s\n", section(h.EntryOffset, h.EntryLength))
	fmt.Fprintf(tw, "filename section:\t%s\n", section(h.FileNameOffset, h.FileNameLength))
	fmt.Fprintf(tw, "stream section:\t%s\n", section(h.StreamOffset, h.StreamLength))
	fmt.Fprintf(tw, "payload bytes:\t%d stored, %d original (ratio %.3f)\n", stored, total, ratio)
	return tw.Flush()
}

func section(off, length uint64) string {
	if length == 0 {
		return "absent"
	}
	return fmt.Sprintf("%d bytes at %d", length, off)
}
