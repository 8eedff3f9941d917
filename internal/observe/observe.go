// Package observe carries optional diagnostic events out of the tree
// engines. Observers are strictly side-channel: an engine behaves the same
// with or without one attached.
package observe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dshills/plugconf/internal/value"
)

// Op names the kind of event.
type Op string

// Event operations emitted by the engines.
const (
	OpDiffRecord    Op = "diff.record"
	OpMergeInsert   Op = "merge.insert"
	OpMergeReplace  Op = "merge.replace"
	OpDefault       Op = "validate.default"
	OpCoerce        Op = "validate.coerce"
	OpValidateFail  Op = "validate.fail"
	OpEitherAttempt Op = "validate.either"
	OpReload        Op = "watch.reload"
	OpReloadFail    Op = "watch.fail"
	OpPluginUpdate  Op = "plugin.update"
)

// Event is a single diagnostic event.
type Event struct {
	Op       Op
	Position value.Position
	Message  string
	Old      *value.Value
	New      *value.Value
}

// Observer receives events.
type Observer interface {
	Observe(Event)
}

// Nop discards every event.
type Nop struct{}

// Observe implements Observer.
func (Nop) Observe(Event) {}

// Func adapts a function to the Observer interface.
type Func func(Event)

// Observe implements Observer.
func (f Func) Observe(e Event) { f(e) }

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}

// Slog logs events through a slog.Logger.
type Slog struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlog returns an observer that logs every event at Debug level.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger, level: slog.LevelDebug}
}

// WithLevel sets the level events are logged at.
func (s *Slog) WithLevel(level slog.Level) *Slog {
	s.level = level
	return s
}

// Observe implements Observer.
func (s *Slog) Observe(e Event) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, s.level) {
		return
	}
	attrs := []slog.Attr{
		slog.String("op", string(e.Op)),
		slog.String("position", e.Position.String()),
	}
	if e.Old != nil {
		attrs = append(attrs, slog.String("old", e.Old.String()))
	}
	if e.New != nil {
		attrs = append(attrs, slog.String("new", e.New.String()))
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Op)
	}
	s.logger.LogAttrs(ctx, s.level, msg, attrs...)
}

// Recorder stores events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Observe implements Observer.
func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Ops returns the recorded operations in order.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]Op, len(r.events))
	for i, e := range r.events {
		ops[i] = e.Op
	}
	return ops
}

// Reset clears the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
