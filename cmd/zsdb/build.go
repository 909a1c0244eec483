package main

import (
	"context"
	"fmt"

	"github.com/meigma/zsdb"
)

func runBuild(ctx context.Context, a *app, args []string) error {
	flags := newFlagSet(a, "build")
	bindBuildFlags(flags)
	rest, err := parseFlags(flags, args, 0, 1)
	if err != nil {
		return err
	}

	cfg := DefaultBuildConfig()
	if path, _ := flags.GetString("config"); path != "" {
		cfg, err = LoadBuildConfig(path)
		if err != nil {
			return err
		}
	}
	cfg.applyFlags(flags)
	if len(rest) == 1 {
		cfg.Source = rest[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.logger.Info("building archive", "source", cfg.Source, "output", cfg.Output)
	opts := append(cfg.Options(a.logger), zsdb.BuildWithProgress(func(ev zsdb.ProgressEvent) {
		a.logger.Debug("build progress",
			"stage", ev.Stage.String(),
			"name", ev.Name,
			"files_done", ev.FilesDone,
			"files_total", ev.FilesTotal)
	}))
	res, err := zsdb.Build(ctx, cfg.Output, cfg.Source, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "%s: %d files (%d compressed, %d skipped), stream %d bytes\n",
		res.Path, res.Files, res.Compressed, res.Skipped, res.Header.StreamLength)
	fmt.Fprintf(a.stdout, "digest: %s\n", res.Digest)
	return nil
}
