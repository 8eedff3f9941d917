package codec

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dshills/plugconf/internal/diff"
	"github.com/dshills/plugconf/internal/value"
	"github.com/tidwall/sjson"
)

// ApplyJSON applies diff records to a raw JSON document, leaving untouched
// parts of the document byte for byte as they were. Removals run after all
// other records, deepest index first, so earlier list indexes stay valid.
func ApplyJSON(doc []byte, records []diff.Record) ([]byte, error) {
	var removals []diff.Record
	out := doc
	for _, r := range records {
		if r.Action == diff.Removed {
			removals = append(removals, r)
			continue
		}
		raw, err := marshalJSON(r.New)
		if err != nil {
			return nil, err
		}
		if r.Position.IsRoot() {
			out = raw
			continue
		}
		if out, err = sjson.SetRawBytes(out, sjsonPath(r.Position), raw); err != nil {
			return nil, fmt.Errorf("set %s: %w", r.Position, err)
		}
	}

	for _, r := range slices.Backward(removals) {
		if r.Position.IsRoot() {
			out = []byte("null")
			continue
		}
		var err error
		if out, err = sjson.DeleteBytes(out, sjsonPath(r.Position)); err != nil {
			return nil, fmt.Errorf("delete %s: %w", r.Position, err)
		}
	}
	return out, nil
}

// sjsonPath renders a position in sjson path syntax, escaping the
// characters sjson treats specially inside keys.
func sjsonPath(pos value.Position) string {
	parts := make([]string, len(pos))
	for i, seg := range pos {
		if idx, ok := seg.Index(); ok {
			parts[i] = strconv.Itoa(idx)
			continue
		}
		key, _ := seg.Key()
		var b strings.Builder
		for _, r := range key {
			switch r {
			case '.', '*', '?', '\\', '|', '#', '@', '!', ':':
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, ".")
}
