package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/meigma/zsdb"
)

// BuildConfig holds the settings of one archive build. It can be loaded
// from a YAML file; flags given on the command line override the file.
type BuildConfig struct {
	// Output is the archive file to write.
	Output string `yaml:"output"`

	// Source is the directory whose regular files are archived.
	Source string `yaml:"source"`

	// Pattern is a regular expression a file name must fully match.
	// Empty selects every file.
	Pattern string `yaml:"pattern"`

	// Dictionary is the path of a dictionary file to compress against.
	// Relative paths are resolved against the config file's directory.
	Dictionary string `yaml:"dictionary"`

	// Ratio is the compressed/original size below which a file is stored
	// compressed. Default: 0.9
	Ratio float64 `yaml:"ratio"`

	// MaxFiles limits the number of archived files. Default: 200000
	MaxFiles int `yaml:"max_files"`

	// SkipCompressionMinSize stores files smaller than this many bytes raw
	// without trying to compress them. Zero tries every file.
	SkipCompressionMinSize int64 `yaml:"skip_compression_min_size"`
}

// DefaultBuildConfig returns the settings used when neither a file nor a
// flag sets a value.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Ratio:    zsdb.DefaultRatio,
		MaxFiles: zsdb.DefaultMaxFiles,
	}
}

// LoadBuildConfig reads a YAML build config. Unknown keys are rejected.
func LoadBuildConfig(path string) (BuildConfig, error) {
	cfg := DefaultBuildConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	cfg.Output = resolvePath(base, cfg.Output)
	cfg.Source = resolvePath(base, cfg.Source)
	cfg.Dictionary = resolvePath(base, cfg.Dictionary)
	return cfg, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// bindBuildFlags registers the build flags on flags with defaults taken
// from DefaultBuildConfig.
func bindBuildFlags(flags *pflag.FlagSet) {
	def := DefaultBuildConfig()
	flags.StringP("output", "o", "", "archive file to write")
	flags.String("pattern", "", "regular expression file names must match")
	flags.String("dict", "", "dictionary file to compress against")
	flags.Float64("ratio", def.Ratio, "store compressed only below this compressed/original ratio")
	flags.Int("max-files", def.MaxFiles, "maximum number of files (negative for no limit)")
	flags.Int64("skip-compression-min-size", 0, "store files smaller than this many bytes raw")
	flags.String("config", "", "YAML file with build settings")
}

// applyFlags overrides cfg with every flag set on the command line.
// The flags must have been registered by bindBuildFlags.
func (c *BuildConfig) applyFlags(flags *pflag.FlagSet) {
	if flags.Changed("output") {
		c.Output, _ = flags.GetString("output")
	}
	if flags.Changed("pattern") {
		c.Pattern, _ = flags.GetString("pattern")
	}
	if flags.Changed("dict") {
		c.Dictionary, _ = flags.GetString("dict")
	}
	if flags.Changed("ratio") {
		c.Ratio, _ = flags.GetFloat64("ratio")
	}
	if flags.Changed("max-files") {
		c.MaxFiles, _ = flags.GetInt("max-files")
	}
	if flags.Changed("skip-compression-min-size") {
		c.SkipCompressionMinSize, _ = flags.GetInt64("skip-compression-min-size")
	}
}

// Validate reports missing or out of range settings.
func (c *BuildConfig) Validate() error {
	if c.Output == "" {
		return usagef("no output archive (use -o or the output key)")
	}
	if c.Source == "" {
		return usagef("no source directory")
	}
	if c.SkipCompressionMinSize < 0 {
		return usagef("skip_compression_min_size must not be negative")
	}
	return nil
}

// Options returns the build options for c.
func (c *BuildConfig) Options(logger *slog.Logger) []zsdb.BuildOption {
	opts := []zsdb.BuildOption{
		zsdb.BuildWithRatio(c.Ratio),
		zsdb.BuildWithMaxFiles(c.MaxFiles),
		zsdb.BuildWithLogger(logger),
	}
	if c.Pattern != "" {
		opts = append(opts, zsdb.BuildWithPattern(c.Pattern))
	}
	if c.Dictionary != "" {
		opts = append(opts, zsdb.BuildWithDictionaryFile(c.Dictionary))
	}
	if c.SkipCompressionMinSize > 0 {
		opts = append(opts, zsdb.BuildWithSkipCompression(zsdb.DefaultSkipCompression(c.SkipCompressionMinSize)))
	}
	return opts
}
