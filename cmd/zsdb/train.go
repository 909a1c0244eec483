package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/meigma/zsdb"
)

func runTrain(ctx context.Context, a *app, args []string) error {
	flags := newFlagSet(a, "train")
	output := flags.StringP("output", "o", "", "dictionary file to write")
	maxSize := flags.Int("max-size", zsdb.DefaultDictionarySize, "maximum dictionary history in bytes")
	id := flags.Uint32("id", zsdb.DefaultDictionaryID, "dictionary ID (non-zero)")
	pattern := flags.String("pattern", "", "regular expression sample file names must match")
	rest, err := parseFlags(flags, args, 1, 1)
	if err != nil {
		return err
	}
	if *output == "" {
		return usagef("no output file (use -o)")
	}

	samples, err := readSamples(ctx, rest[0], *pattern)
	if err != nil {
		return err
	}
	a.logger.Info("training dictionary", "samples", len(samples), "max_size", *maxSize)

	dict, err := zsdb.TrainDictionary(samples, zsdb.TrainWithMaxSize(*maxSize), zsdb.TrainWithID(*id))
	if err != nil {
		return err
	}
	if err := os.WriteFile(*output, dict, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %d bytes from %d samples\n", *output, len(dict), len(samples))
	return nil
}

// readSamples reads the regular files directly under dir whose names match
// pattern, in name order.
func readSamples(ctx context.Context, dir, pattern string) ([][]byte, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return nil, usagef("invalid --pattern: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var samples [][]byte
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || (re != nil && !re.MatchString(e.Name())) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		samples = append(samples, data)
	}
	return samples, nil
}
