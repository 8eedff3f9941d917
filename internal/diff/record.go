package diff

import (
	"fmt"

	"github.com/dshills/plugconf/internal/value"
)

// Action is the kind of change a Record describes.
type Action uint8

// Record actions.
const (
	Added Action = iota + 1
	Removed
	Changed
	Increased
	Decreased
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	case Increased:
		return "increased"
	case Decreased:
		return "decreased"
	default:
		return "unknown"
	}
}

// Inverse returns the action that undoes a.
func (a Action) Inverse() Action {
	switch a {
	case Added:
		return Removed
	case Removed:
		return Added
	case Increased:
		return Decreased
	case Decreased:
		return Increased
	default:
		return a
	}
}

// Record describes one difference between two trees.
//
// Added records carry New only, Removed records carry Old only. Changed,
// Increased and Decreased records carry both. Delta is the absolute
// numeric difference for Increased and Decreased: an integer when both sides
// are integers, a float otherwise.
type Record struct {
	Position value.Position
	Action   Action
	Old      *value.Value
	New      *value.Value
	Delta    *value.Value
}

// Invert returns the record that diffing the trees in the opposite order
// would produce.
func (r Record) Invert() Record {
	return Record{
		Position: r.Position,
		Action:   r.Action.Inverse(),
		Old:      r.New,
		New:      r.Old,
		Delta:    r.Delta,
	}
}

// Invert returns the inverse of every record, keeping their order.
func Invert(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Invert()
	}
	return out
}

// String renders r as a sentence such as
// "[a][b] value `1` increased by 2 to new value `3`".
func (r Record) String() string {
	prefix := ""
	if !r.Position.IsRoot() {
		prefix = r.Position.String() + " "
	}

	switch r.Action {
	case Added:
		return fmt.Sprintf("%svalue `%s` added", prefix, r.New)
	case Removed:
		return fmt.Sprintf("%svalue `%s` removed", prefix, r.Old)
	}
	return fmt.Sprintf("%svalue `%s` %s to new value `%s`", prefix, r.Old, r.describe(), r.New)
}

func (r Record) describe() string {
	switch r.Action {
	case Increased:
		return fmt.Sprintf("increased by %s", r.Delta)
	case Decreased:
		return fmt.Sprintf("decreased by %s", r.Delta)
	}
	if r.Old.Kind() != r.New.Kind() {
		return fmt.Sprintf("changed from %s type to %s type", r.Old.Kind(), r.New.Kind())
	}
	return "updated"
}
