package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/plugconf/internal/codec"
	"github.com/dshills/plugconf/internal/diff"
	"github.com/dshills/plugconf/internal/layer"
	"github.com/dshills/plugconf/internal/loader"
	"github.com/dshills/plugconf/internal/plugin"
	"github.com/dshills/plugconf/internal/schema"
	"github.com/dshills/plugconf/internal/validate"
	"github.com/dshills/plugconf/internal/value"
	"github.com/dshills/plugconf/internal/watcher"
)

func runValidate(c *cli, args []string) int {
	fs := c.flagSet()
	schemaPath := fs.String("schema", "", "Schema file (required)")
	format := fs.String("o", "", "Output format (json, yaml, toml, lua); defaults to the input's")
	env := fs.Bool("env", false, "Overlay "+loader.DefaultEnvPrefix+" environment variables")
	coerce := fs.Bool("coerce", false, "Convert strings to the expected scalar type")
	var sets setFlags
	fs.Var(&sets, "set", "Override a value as key.path=value (repeatable)")
	if !c.parse(fs, args, 1, -1) {
		return exitUsage
	}
	if *schemaPath == "" {
		fmt.Fprintln(c.stderr, "Error: -schema is required")
		return exitUsage
	}

	def, err := c.loadSchema(*schemaPath)
	if err != nil {
		return c.errorf("%v", err)
	}
	tree, err := c.layered(fs.Args(), *env, sets)
	if err != nil {
		return c.errorf("%v", err)
	}

	opts := []validate.Option{validate.WithObserver(c.observer)}
	if *coerce {
		opts = append(opts, validate.WithCoercion())
	}
	if err := validate.Validate(tree, def, nil, opts...); err != nil {
		fmt.Fprintf(c.stderr, "%s: %v\n", strings.Join(fs.Args(), ", "), err)
		return exitFailure
	}
	return c.write(tree, *format, fs.Arg(0))
}

func runDiff(c *cli, args []string) int {
	fs := c.flagSet()
	exitCode := fs.Bool("exit-code", false, "Exit with status 1 when the documents differ")
	if !c.parse(fs, args, 2, 2) {
		return exitUsage
	}

	fl := c.fileLoader()
	from, err := c.readTree(fl, fs.Arg(0))
	if err != nil {
		return c.errorf("%v", err)
	}
	to, err := c.readTree(fl, fs.Arg(1))
	if err != nil {
		return c.errorf("%v", err)
	}

	changed := false
	diff.Diff(from, to, func(r diff.Record) {
		changed = true
		c.printRecord(r)
	}, diff.WithObserver(c.observer))

	if changed && *exitCode {
		return exitFailure
	}
	return exitOK
}

func runPatch(c *cli, args []string) int {
	fs := c.flagSet()
	fromPath := fs.String("from", "", "Old document (required)")
	toPath := fs.String("to", "", "New document (required)")
	write := fs.Bool("w", false, "Write the result to TARGET instead of standard output")
	if !c.parse(fs, args, 1, 1) {
		return exitUsage
	}
	if *fromPath == "" || *toPath == "" {
		fmt.Fprintln(c.stderr, "Error: -from and -to are required")
		return exitUsage
	}

	fl := c.fileLoader()
	from, err := c.readTree(fl, *fromPath)
	if err != nil {
		return c.errorf("%v", err)
	}
	to, err := c.readTree(fl, *toPath)
	if err != nil {
		return c.errorf("%v", err)
	}

	target := fs.Arg(0)
	doc, err := os.ReadFile(target)
	if err != nil {
		return c.errorf("%v", err)
	}
	out, err := codec.ApplyJSON(doc, diff.Collect(from, to))
	if err != nil {
		return c.errorf("patch %s: %v", target, err)
	}

	if *write {
		info, err := os.Stat(target)
		if err != nil {
			return c.errorf("%v", err)
		}
		if err := os.WriteFile(target, out, info.Mode().Perm()); err != nil {
			return c.errorf("%v", err)
		}
		return exitOK
	}
	c.stdout.Write(out)
	return exitOK
}

func runMerge(c *cli, args []string) int {
	fs := c.flagSet()
	format := fs.String("o", "", "Output format; defaults to the first input's")
	env := fs.Bool("env", false, "Overlay "+loader.DefaultEnvPrefix+" environment variables")
	var sets setFlags
	fs.Var(&sets, "set", "Override a value as key.path=value (repeatable)")
	if !c.parse(fs, args, 1, -1) {
		return exitUsage
	}

	tree, err := c.layered(fs.Args(), *env, sets)
	if err != nil {
		return c.errorf("%v", err)
	}
	return c.write(tree, *format, fs.Arg(0))
}

func runFmt(c *cli, args []string) int {
	fs := c.flagSet()
	to := fs.String("to", "", "Output format; defaults to the input's")
	if !c.parse(fs, args, 1, 1) {
		return exitUsage
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return c.errorf("%v", err)
	}
	// Includes are left as written.
	tree, err := c.fileLoader().Decode(path, data)
	if err != nil {
		return c.errorf("%v", err)
	}
	return c.write(tree, *to, path)
}

func runDescribe(c *cli, args []string) int {
	fs := c.flagSet()
	if !c.parse(fs, args, 1, 1) {
		return exitUsage
	}
	def, err := c.loadSchema(fs.Arg(0))
	if err != nil {
		return c.errorf("%v", err)
	}
	fmt.Fprintln(c.stdout, def)
	return exitOK
}

func runPlugins(c *cli, args []string) int {
	fs := c.flagSet()
	dir := fs.String("schemas", "", "Directory of plugin schemas, one file per plugin (required)")
	format := fs.String("o", "", "Output format; defaults to the input's")
	if !c.parse(fs, args, 1, 1) {
		return exitUsage
	}
	if *dir == "" {
		fmt.Fprintln(c.stderr, "Error: -schemas is required")
		return exitUsage
	}

	mgr := plugin.NewManager(
		plugin.WithValidation(validate.WithObserver(c.observer)),
		plugin.WithObserver(c.observer),
	)
	entries, err := os.ReadDir(*dir)
	if err != nil {
		return c.errorf("%v", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(*dir, e.Name())
		if _, err := codec.ForPath(path); err != nil {
			c.logger.Debug("skipping schema file", "path", path, "error", err)
			continue
		}
		def, err := c.loadSchema(path)
		if err != nil {
			return c.errorf("%v", err)
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := mgr.Register(name, def); err != nil {
			return c.errorf("%v", err)
		}
		c.logger.Info("registered plugin", "name", name)
	}

	tree, err := c.readTree(c.fileLoader(), fs.Arg(0))
	if err != nil {
		return c.errorf("%v", err)
	}
	if err := mgr.Load(tree); err != nil {
		fmt.Fprintf(c.stderr, "%s: %v\n", fs.Arg(0), err)
		return exitFailure
	}
	return c.write(mgr.Tree(), *format, fs.Arg(0))
}

func runWatch(c *cli, args []string) int {
	fs := c.flagSet()
	schemaPath := fs.String("schema", "", "Schema to validate every reload against")
	debounce := fs.Duration("debounce", watcher.DefaultDebounce, "Quiet period before a change is reloaded")
	if !c.parse(fs, args, 1, -1) {
		return exitUsage
	}

	opts := []watcher.Option{
		watcher.WithLoader(c.fileLoader()),
		watcher.WithDebounce(*debounce),
		watcher.WithObserver(c.observer),
		watcher.WithOnReload(c.printReload),
	}
	if *schemaPath != "" {
		def, err := c.loadSchema(*schemaPath)
		if err != nil {
			return c.errorf("%v", err)
		}
		opts = append(opts, watcher.WithDefinition(def, validate.WithObserver(c.observer)))
	}

	w, err := watcher.New(opts...)
	if err != nil {
		return c.errorf("%v", err)
	}
	defer w.Close()

	for _, path := range fs.Args() {
		if _, err := w.Add(path); err != nil {
			return c.errorf("%v", err)
		}
		c.logger.Info("watching", "path", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return c.errorf("%v", err)
	}
	return exitOK
}

func (c *cli) fileLoader() *loader.FileLoader {
	return loader.NewFileLoader(loader.WithObserver(c.observer))
}

// readTree loads path, treating a missing file as an error.
func (c *cli) readTree(fl *loader.FileLoader, path string) (*value.Value, error) {
	tree, err := fl.Load(path)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return tree, nil
}

func (c *cli) loadSchema(path string) (schema.Definition, error) {
	raw, err := c.readTree(c.fileLoader(), path)
	if err != nil {
		return nil, err
	}
	def, err := schema.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return def, nil
}

// layered stacks files as layers in argument order, then the environment,
// then -set overrides.
func (c *cli) layered(files []string, env bool, sets setFlags) (*value.Value, error) {
	mgr := layer.NewManager()
	fl := c.fileLoader()
	for i, path := range files {
		data, err := c.readTree(fl, path)
		if err != nil {
			return nil, err
		}
		l := layer.NewLayerWithData(path, layer.SourceUser, layer.PriorityUser+i, data)
		l.Path = path
		mgr.AddLayer(l)
	}

	if env {
		data, err := loader.NewEnvLoader(loader.DefaultEnvPrefix).Load()
		if err != nil {
			return nil, err
		}
		mgr.AddLayer(layer.NewLayerWithData("env", layer.SourceEnv, layer.PriorityEnv, data))
	}

	for _, s := range sets {
		key, raw, _ := strings.Cut(s, "=")
		if err := mgr.SetInSession(dottedPosition(key), loader.ParseValue(raw)); err != nil {
			return nil, fmt.Errorf("-set %s: %w", key, err)
		}
	}

	for _, l := range mgr.Layers() {
		c.logger.Debug("layer", "name", l.Name, "source", l.Source, "priority", l.Priority)
	}
	return mgr.Merged(), nil
}

// dottedPosition turns "a.b.0" into [a][b][0].
func dottedPosition(s string) value.Position {
	var pos value.Position
	for _, part := range strings.Split(s, ".") {
		p, _ := value.ParsePosition(part)
		pos = append(pos, p...)
	}
	return pos
}

// write encodes tree in format, or in the format of path when format is
// empty, falling back to JSON.
func (c *cli) write(tree *value.Value, format, path string) int {
	var (
		cd  codec.Codec
		err error
	)
	if format != "" {
		cd, err = codec.ByName(format)
	} else if cd, err = codec.ForPath(path); err != nil {
		cd, err = codec.ByName("json")
	}
	if err != nil {
		return c.errorf("%v", err)
	}

	out, err := cd.Encode(tree)
	if err != nil {
		return c.errorf("encode %s: %v", cd.Name(), err)
	}
	c.stdout.Write(out)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		fmt.Fprintln(c.stdout)
	}
	return exitOK
}

// ANSI colors for change records.
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
)

func (c *cli) printRecord(r diff.Record) {
	line := r.String()
	if c.color {
		color := colorYellow
		switch r.Action {
		case diff.Added:
			color = colorGreen
		case diff.Removed:
			color = colorRed
		}
		line = color + line + colorReset
	}
	fmt.Fprintln(c.stdout, line)
}

func (c *cli) printReload(r watcher.Reload) {
	stamp := r.Time.Format(time.TimeOnly)
	if r.Err != nil {
		fmt.Fprintf(c.stderr, "%s %s: reload failed, keeping previous configuration: %v\n", stamp, r.Path, r.Err)
		return
	}
	if len(r.Changes) == 0 {
		c.logger.Debug("reload without changes", "path", r.Path, "id", r.ID)
		return
	}
	fmt.Fprintf(c.stdout, "%s %s: %d changes\n", stamp, r.Path, len(r.Changes))
	for _, rec := range r.Changes {
		c.printRecord(rec)
	}
}
