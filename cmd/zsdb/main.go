// zsdb builds, reads and inspects ZSDB archives.
//
// Usage:
//
//	zsdb [--log-level LEVEL] <command> [flags] [args]
//
// Commands:
//
//	build    build an archive from the files of a directory
//	list     list archive entries
//	get      print or save one entry
//	extract  extract entries into a directory
//	train    train a compression dictionary from sample files
//	inspect  show the header and statistics of a local or remote archive
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries the state shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"build", "build -o OUT [--pattern RE] [--dict FILE] [--ratio R] [--config FILE] SRC", "build an archive from the files of a directory", runBuild},
	{"list", "list [--json] ARCHIVE", "list archive entries", runList},
	{"get", "get [--prefix N] [-o FILE] ARCHIVE NAME", "print or save one entry", runGet},
	{"extract", "extract [--overwrite] [--workers N] ARCHIVE DEST [NAME...]", "extract entries into a directory", runExtract},
	{"train", "train -o OUT [--max-size N] [--id N] [--pattern RE] SRC", "train a compression dictionary from sample files", runTrain},
	{"inspect", "inspect [--header KEY=VALUE] [--cache-dir DIR] ARCHIVE|URL", "show the header and statistics of a local or remote archive", runInspect},
}

// usageError reports a command line mistake; it exits with status 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("zsdb", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.SetOutput(stderr)
	logLevel := flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Usage = func() { printUsage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(stderr, "zsdb: invalid --log-level %q\n", *logLevel)
		return 2
	}
	a := &app{
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(stderr, flags)
		return 2
	}
	cmd, ok := findCommand(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "zsdb: unknown command %q\n", rest[0])
		printUsage(stderr, flags)
		return 2
	}

	err := cmd.run(ctx, a, rest[1:])
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	}
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "zsdb %s: %v\nusage: zsdb %s\n", cmd.name, err, cmd.usage)
		return 2
	}
	fmt.Fprintf(stderr, "zsdb %s: %v\n", cmd.name, err)
	return 1
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// newFlagSet returns the flag set of a subcommand. Parse errors are
// returned as usage errors.
func newFlagSet(a *app, cmd string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("zsdb "+cmd, pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	return flags
}

// parseFlags parses args and checks the number of positional arguments.
func parseFlags(flags *pflag.FlagSet, args []string, minArgs, maxArgs int) ([]string, error) {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, &usageError{msg: err.Error()}
	}
	rest := flags.Args()
	if len(rest) < minArgs {
		return nil, usagef("expected at least %d argument(s), got %d", minArgs, len(rest))
	}
	if maxArgs >= 0 && len(rest) > maxArgs {
		return nil, usagef("unexpected argument %q", rest[maxArgs])
	}
	return rest, nil
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	var b strings.Builder
	b.WriteString("Usage: zsdb [flags] <command> [args]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-8s %s\n", c.name, c.summary)
	}
	b.WriteString("\nFlags:\n")
	fmt.Fprint(w, b.String())
	flags.SetOutput(w)
	flags.PrintDefaults()
}
