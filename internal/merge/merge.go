// Package merge combines value trees.
//
// Maps merge recursively: keys missing from the target are inserted as
// copies, keys present on both sides are merged again. Every other pairing,
// lists included, replaces the target node with a copy of the source.
package merge

import (
	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/value"
)

// Option configures a merge.
type Option func(*merger)

// WithObserver attaches an observer that receives insert and replace events.
func WithObserver(o observe.Observer) Option {
	return func(m *merger) {
		m.observer = observe.OrNop(o)
	}
}

type merger struct {
	observer observe.Observer
}

// Merge merges source into target in place. A nil source leaves target
// untouched. Source is never modified and shares no nodes with the result.
func Merge(target, source *value.Value, opts ...Option) {
	if target == nil || source == nil {
		return
	}
	m := &merger{observer: observe.Nop{}}
	for _, opt := range opts {
		opt(m)
	}
	m.merge(target, source, nil)
}

// Merged returns a new tree made by merging each overlay, in order, into a
// copy of base. None of the inputs are modified.
func Merged(base *value.Value, overlays ...*value.Value) *value.Value {
	out := base.Clone()
	if out == nil {
		out = value.EmptyMap()
	}
	for _, o := range overlays {
		Merge(out, o)
	}
	return out
}

func (m *merger) merge(target, source *value.Value, pos value.Position) {
	tm, terr := target.AsMap()
	sm, serr := source.AsMap()
	if terr != nil || serr != nil {
		m.observer.Observe(observe.Event{
			Op:       observe.OpMergeReplace,
			Position: pos,
			Old:      target.Clone(),
			New:      source,
		})
		target.Assign(source)
		return
	}

	for k, sv := range sm.All() {
		tv, ok := tm.Get(k)
		if !ok {
			m.observer.Observe(observe.Event{
				Op:       observe.OpMergeInsert,
				Position: pos.Key(k),
				New:      sv,
			})
			tm.Set(k, sv.Clone())
			continue
		}
		m.merge(tv, sv, pos.Key(k))
	}
}
