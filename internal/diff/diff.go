// Package diff compares two value trees and reports positional change
// records.
//
// Records are emitted depth-first. Map children are visited in the old map's
// order followed by keys that only exist in the new map; list elements are
// compared index by index, with trailing elements reported as added or
// removed. Nodes of different kinds are reported as one Changed record and
// not descended into.
package diff

import (
	"math"

	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/value"
)

// Option configures a diff run.
type Option func(*differ)

// WithObserver attaches an observer that receives one event per record.
func WithObserver(o observe.Observer) Option {
	return func(d *differ) {
		d.observer = observe.OrNop(o)
	}
}

// WithBase sets the position of the compared nodes inside a larger tree.
// Record positions are reported relative to the enclosing tree.
func WithBase(pos value.Position) Option {
	return func(d *differ) {
		d.base = pos
	}
}

type differ struct {
	emit     func(Record)
	observer observe.Observer
	base     value.Position
}

// Diff compares from with to and calls emit for every difference. Neither
// tree is modified.
func Diff(from, to *value.Value, emit func(Record), opts ...Option) {
	d := &differ{emit: emit, observer: observe.Nop{}}
	for _, opt := range opts {
		opt(d)
	}
	d.walk(from, to, d.base)
}

// Collect returns the records of Diff as a slice.
func Collect(from, to *value.Value, opts ...Option) []Record {
	var out []Record
	Diff(from, to, func(r Record) { out = append(out, r) }, opts...)
	return out
}

func (d *differ) walk(from, to *value.Value, pos value.Position) {
	if value.Equal(from, to) {
		return
	}

	fk, tk := from.Kind(), to.Kind()
	switch {
	case fk == value.KindMap && tk == value.KindMap:
		d.walkMap(from, to, pos)
	case fk == value.KindList && tk == value.KindList:
		d.walkList(from, to, pos)
	case fk.IsNumeric() && tk.IsNumeric():
		d.walkNumber(from, to, pos)
	default:
		d.record(Record{Position: pos, Action: Changed, Old: from, New: to})
	}
}

func (d *differ) walkMap(from, to *value.Value, pos value.Position) {
	om, _ := from.AsMap()
	nm, _ := to.AsMap()

	for k, ov := range om.All() {
		if nv, ok := nm.Get(k); ok {
			d.walk(ov, nv, pos.Key(k))
			continue
		}
		d.record(Record{Position: pos.Key(k), Action: Removed, Old: ov})
	}
	for k, nv := range nm.All() {
		if !om.Has(k) {
			d.record(Record{Position: pos.Key(k), Action: Added, New: nv})
		}
	}
}

func (d *differ) walkList(from, to *value.Value, pos value.Position) {
	ol, _ := from.AsList()
	nl, _ := to.AsList()

	shared := min(len(ol), len(nl))
	for i := 0; i < shared; i++ {
		d.walk(ol[i], nl[i], pos.Index(i))
	}
	for i := shared; i < len(nl); i++ {
		d.record(Record{Position: pos.Index(i), Action: Added, New: nl[i]})
	}
	for i := shared; i < len(ol); i++ {
		d.record(Record{Position: pos.Index(i), Action: Removed, Old: ol[i]})
	}
}

func (d *differ) walkNumber(from, to *value.Value, pos value.Position) {
	delta, sign := numericDelta(from, to)
	r := Record{Position: pos, Old: from, New: to, Delta: delta}
	switch {
	case sign > 0:
		r.Action = Increased
	case sign < 0:
		r.Action = Decreased
	default:
		// Same magnitude but a different kind (1 and 1.0), or NaN.
		r.Action = Changed
		r.Delta = nil
	}
	d.record(r)
}

// numericDelta returns |to-from| and the sign of to-from. Two integers keep
// an integer delta unless the subtraction overflows.
func numericDelta(from, to *value.Value) (*value.Value, int) {
	oi, oerr := from.AsInt()
	ni, nerr := to.AsInt()
	if oerr == nil && nerr == nil {
		diff := ni - oi
		overflow := (ni >= oi) != (diff >= 0)
		if !overflow && diff != math.MinInt64 {
			switch {
			case diff > 0:
				return value.Int(diff), 1
			case diff < 0:
				return value.Int(-diff), -1
			}
			return nil, 0
		}
	}

	of, _ := from.Number()
	nf, _ := to.Number()
	diff := nf - of
	switch {
	case diff > 0:
		return value.Float(diff), 1
	case diff < 0:
		return value.Float(-diff), -1
	}
	return nil, 0
}

func (d *differ) record(r Record) {
	d.observer.Observe(observe.Event{
		Op:       observe.OpDiffRecord,
		Position: r.Position,
		Message:  r.String(),
		Old:      r.Old,
		New:      r.New,
	})
	if d.emit != nil {
		d.emit(r)
	}
}
