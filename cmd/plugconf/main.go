// Package main is the entry point for the plugconf command.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/dshills/plugconf/internal/observe"
	"github.com/mattn/go-isatty"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type command struct {
	name    string
	usage   string
	summary string
	run     func(c *cli, args []string) int
}

var commands = []command{
	{"validate", "validate -schema SCHEMA [-o FMT] [-env] [-coerce] [-set K=V]... FILE...", "validate a configuration and print it with defaults filled in", runValidate},
	{"diff", "diff [-exit-code] OLD NEW", "list the differences between two documents", runDiff},
	{"patch", "patch -from OLD -to NEW [-w] TARGET.json", "apply the differences between two documents to a JSON file", runPatch},
	{"merge", "merge [-o FMT] [-env] [-set K=V]... BASE OVERLAY...", "merge documents, later ones winning", runMerge},
	{"fmt", "fmt [-to FMT] FILE", "reformat a document or convert it to another format", runFmt},
	{"describe", "describe SCHEMA", "describe what a schema accepts", runDescribe},
	{"plugins", "plugins -schemas DIR [-o FMT] FILE", "validate the plugins section of a configuration", runPlugins},
	{"watch", "watch [-schema SCHEMA] [-debounce D] FILE...", "print changes to configuration files as they happen", runWatch},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries what every command shares.
type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
	observer observe.Observer
	color    bool
	cmd      command
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plugconf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	logLevel := fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	showVersion := fs.Bool("version", false, "Show version information")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "plugconf %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return exitOK
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", *logLevel)
		return exitUsage
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	c := &cli{
		stdout:   stdout,
		stderr:   stderr,
		logger:   logger,
		observer: observe.NewSlog(logger),
		color:    !*noColor && terminal(stdout),
	}

	rest := fs.Args()
	if len(rest) == 0 {
		usage(stderr, fs)
		return exitUsage
	}
	i := slices.IndexFunc(commands, func(cmd command) bool { return cmd.name == rest[0] })
	if i < 0 {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", rest[0])
		usage(stderr, fs)
		return exitUsage
	}
	c.cmd = commands[i]
	return c.cmd.run(c, rest[1:])
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "plugconf - validate, merge and diff plugin configuration\n\n")
	fmt.Fprintf(w, "Usage: plugconf [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, "\nOptions:\n")
	fs.PrintDefaults()
}

// terminal reports whether w writes to a terminal.
func terminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// flagSet returns a flag set for the running command that prints its usage
// line. It reads the command from c rather than the commands table, which
// refers back to every run function.
func (c *cli) flagSet() *flag.FlagSet {
	cmd := c.cmd
	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: plugconf %s\n\n%s.\n\n", cmd.usage, cmd.summary)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and checks the number of positional arguments. max < 0
// means no upper bound.
func (c *cli) parse(fs *flag.FlagSet, args []string, min, max int) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	n := fs.NArg()
	if n < min || (max >= 0 && n > max) {
		fs.Usage()
		return false
	}
	return true
}

func (c *cli) errorf(format string, args ...any) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return exitFailure
}

// setFlags collects repeated -set key=value flags.
type setFlags []string

func (s *setFlags) String() string { return strings.Join(*s, ",") }

func (s *setFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*s = append(*s, v)
	return nil
}
