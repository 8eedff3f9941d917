// Package watcher reloads configuration files when they change on disk.
//
// Each watched file is reloaded through the loader, optionally validated,
// and diffed against the last tree that loaded successfully. The resulting
// records are published through a notifier. A reload that fails to parse or
// validate keeps the previous tree.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/plugconf/internal/diff"
	"github.com/dshills/plugconf/internal/loader"
	"github.com/dshills/plugconf/internal/notify"
	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/schema"
	"github.com/dshills/plugconf/internal/validate"
	"github.com/dshills/plugconf/internal/value"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Common errors.
var (
	ErrWatcherClosed   = errors.New("watcher closed")
	ErrAlreadyWatching = errors.New("already watching path")
	ErrNotWatching     = errors.New("not watching path")
)

// DefaultDebounce coalesces the bursts of events editors produce when
// saving a file.
const DefaultDebounce = 100 * time.Millisecond

// Reload describes one reload attempt.
type Reload struct {
	// ID identifies the attempt in logs and change sources.
	ID string

	// Path is the absolute path of the reloaded file.
	Path string

	// Tree is the tree now in effect: the new one on success, the previous
	// one on failure.
	Tree *value.Value

	// Changes lists the differences from the previous tree.
	Changes []diff.Record

	// Err is set when the file could not be loaded or validated.
	Err error

	Time time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLoader sets the loader used to read files.
func WithLoader(l *loader.FileLoader) Option {
	return func(w *Watcher) {
		w.loader = l
	}
}

// WithDefinition validates every loaded tree against def, injecting its
// defaults.
func WithDefinition(def schema.Definition, opts ...validate.Option) Option {
	return func(w *Watcher) {
		w.def = def
		w.validator = validate.New(opts...)
	}
}

// WithNotifier publishes the changes of each successful reload.
func WithNotifier(n *notify.Notifier) Option {
	return func(w *Watcher) {
		w.notifier = n
	}
}

// WithDebounce sets how long to wait for a file to settle before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnReload registers a callback run after every reload attempt.
func WithOnReload(fn func(Reload)) Option {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// WithObserver receives reload and reload failure events.
func WithObserver(o observe.Observer) Option {
	return func(w *Watcher) {
		w.observer = observe.OrNop(o)
	}
}

// Watcher watches configuration files.
type Watcher struct {
	mu sync.Mutex

	// fsnotify watcher
	fsw *fsnotify.Watcher

	// Configuration
	loader    *loader.FileLoader
	def       schema.Definition
	validator *validate.Validator
	notifier  *notify.Notifier
	debounce  time.Duration
	onReload  func(Reload)
	observer  observe.Observer

	// Last good tree per absolute file path
	files map[string]*value.Value

	// Watched directories with the number of files in each
	dirs map[string]int

	// Pending debounce timers
	timers map[string]*time.Timer

	reloads chan string

	// Lifecycle
	closed  bool
	closeCh chan struct{}
}

// New creates a watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		loader:   loader.NewFileLoader(),
		debounce: DefaultDebounce,
		observer: observe.Nop{},
		files:    make(map[string]*value.Value),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
		reloads:  make(chan string, 16),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add loads path and starts watching it. The parent directory is watched
// rather than the file so that editors replacing the file by rename are
// still seen. A missing file loads as an empty map.
func (w *Watcher) Add(path string) (*value.Value, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	tree, err := w.load(absPath)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWatcherClosed
	}
	if _, ok := w.files[absPath]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyWatching, absPath)
	}

	dir := filepath.Dir(absPath)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[absPath] = tree
	return tree.Clone(), nil
}

// Remove stops watching path.
func (w *Watcher) Remove(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.files[absPath]; !ok {
		return fmt.Errorf("%w: %s", ErrNotWatching, absPath)
	}
	delete(w.files, absPath)
	if t, ok := w.timers[absPath]; ok {
		t.Stop()
		delete(w.timers, absPath)
	}

	dir := filepath.Dir(absPath)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		return w.fsw.Remove(dir)
	}
	return nil
}

// Current returns a copy of the tree in effect for path.
func (w *Watcher) Current(path string) (*value.Value, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	tree, ok := w.files[absPath]
	if !ok {
		return nil, false
	}
	return tree.Clone(), true
}

// Run processes file system events until ctx is cancelled or the watcher
// is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.closeCh:
			return ErrWatcherClosed

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return ErrWatcherClosed
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.observer.Observe(observe.Event{Op: observe.OpReloadFail, Message: err.Error()})

		case path := <-w.reloads:
			w.Reload(path)
		}
	}
}

// handleEvent schedules a reload when a watched file changes.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	absPath, err := filepath.Abs(ev.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[absPath]; !ok || w.closed {
		return
	}
	if t, ok := w.timers[absPath]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[absPath] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, absPath)
		w.mu.Unlock()

		select {
		case w.reloads <- absPath:
		case <-w.closeCh:
		}
	})
}

// Reload reloads path immediately, publishes the changes and returns the
// outcome.
func (w *Watcher) Reload(path string) Reload {
	r := Reload{ID: uuid.NewString(), Time: time.Now()}

	absPath, err := filepath.Abs(path)
	if err != nil {
		r.Err = err
		return w.finish(r)
	}
	r.Path = absPath

	w.mu.Lock()
	prev, ok := w.files[absPath]
	w.mu.Unlock()
	if !ok {
		r.Err = fmt.Errorf("%w: %s", ErrNotWatching, absPath)
		return w.finish(r)
	}

	tree, err := w.load(absPath)
	if err != nil {
		r.Tree = prev.Clone()
		r.Err = err
		return w.finish(r)
	}

	r.Changes = diff.Collect(prev, tree)
	r.Tree = tree.Clone()

	w.mu.Lock()
	if _, ok := w.files[absPath]; ok {
		w.files[absPath] = tree
	}
	w.mu.Unlock()

	if w.notifier != nil && len(r.Changes) > 0 {
		w.notifier.NotifyDiff(r.Changes, "watch:"+r.ID)
	}
	return w.finish(r)
}

func (w *Watcher) finish(r Reload) Reload {
	if r.Err != nil {
		w.observer.Observe(observe.Event{
			Op:      observe.OpReloadFail,
			Message: fmt.Sprintf("reload %s of %s failed: %v", r.ID, r.Path, r.Err),
		})
	} else {
		w.observer.Observe(observe.Event{
			Op:      observe.OpReload,
			Message: fmt.Sprintf("reload %s of %s: %d changes", r.ID, r.Path, len(r.Changes)),
		})
	}
	if w.onReload != nil {
		w.onReload(r)
	}
	return r
}

func (w *Watcher) load(path string) (*value.Value, error) {
	tree, err := w.loader.Load(path)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		tree = value.EmptyMap()
	}
	if w.def != nil {
		if err := w.validator.Validate(tree, w.def, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return tree, nil
}

// Close stops the watcher. It is safe to call Close multiple times.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	return w.fsw.Close()
}
