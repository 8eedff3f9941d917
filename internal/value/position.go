package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Position: either a map key or a list index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// KeySegment returns a map key segment.
func KeySegment(key string) Segment { return Segment{key: key} }

// IndexSegment returns a list index segment.
func IndexSegment(i int) Segment { return Segment{index: i, isIndex: true} }

// IsIndex reports whether s is a list index.
func (s Segment) IsIndex() bool { return s.isIndex }

// Key returns the map key of s.
func (s Segment) Key() (string, bool) { return s.key, !s.isIndex }

// Index returns the list index of s.
func (s Segment) Index() (int, bool) { return s.index, s.isIndex }

// String renders the segment without brackets.
func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// quoted is String with '[', ']' and '\' escaped by a backslash.
func (s Segment) quoted() string {
	if s.isIndex || !strings.ContainsAny(s.key, `[]\`) {
		return s.String()
	}
	var b strings.Builder
	for i := 0; i < len(s.key); i++ {
		c := s.key[i]
		if c == '[' || c == ']' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Position locates a node inside a tree. The empty Position is the root.
type Position []Segment

// Key returns a copy of p extended with a key segment.
func (p Position) Key(key string) Position {
	return p.with(KeySegment(key))
}

// Index returns a copy of p extended with an index segment.
func (p Position) Index(i int) Position {
	return p.with(IndexSegment(i))
}

func (p Position) with(s Segment) Position {
	out := make(Position, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// IsRoot reports whether p is the root position.
func (p Position) IsRoot() bool { return len(p) == 0 }

// Parent returns p without its last segment.
func (p Position) Parent() Position {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the final segment of p.
func (p Position) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// Equal reports whether p and o name the same location.
func (p Position) Equal(o Position) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is p or an ancestor of p.
func (p Position) HasPrefix(prefix Position) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// String renders p. The root renders as an empty string, a single segment
// renders bare, and deeper positions render as bracketed segments: [a][0][b].
// Brackets and backslashes inside keys are escaped with a backslash.
func (p Position) String() string {
	switch len(p) {
	case 0:
		return ""
	case 1:
		return p[0].quoted()
	}
	var b strings.Builder
	for _, s := range p {
		b.WriteByte('[')
		b.WriteString(s.quoted())
		b.WriteByte(']')
	}
	return b.String()
}

// ParsePosition parses the rendering produced by Position.String. Segments
// made only of digits become indexes, so a key such as "0" comes back as an
// index; Lookup accepts either.
func ParsePosition(s string) (Position, error) {
	if s == "" {
		return nil, nil
	}
	if s[0] != '[' {
		key, _, err := unquote(s, false)
		if err != nil {
			return nil, fmt.Errorf("invalid position %q: %w", s, err)
		}
		return Position{parseSegment(key)}, nil
	}
	var p Position
	rest := s
	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("invalid position %q: expected '['", s)
		}
		key, after, err := unquote(rest[1:], true)
		if err != nil {
			return nil, fmt.Errorf("invalid position %q: %w", s, err)
		}
		p = append(p, parseSegment(key))
		rest = after
	}
	return p, nil
}

// unquote reads a segment from s, removing backslash escapes. With closed
// set it stops after the first unescaped ']' and returns what follows.
func unquote(s string, closed bool) (string, string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\':
			if i+1 == len(s) {
				return "", "", errors.New("trailing backslash")
			}
			i++
			b.WriteByte(s[i])
		case c == ']' && closed:
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}
	if closed {
		return "", "", errors.New("unterminated segment")
	}
	return b.String(), "", nil
}

func parseSegment(s string) Segment {
	if s != "" && strings.Trim(s, "0123456789") == "" {
		if i, err := strconv.Atoi(s); err == nil {
			return IndexSegment(i)
		}
	}
	return KeySegment(s)
}

// Lookup resolves p inside root. Index segments also address map keys made
// of digits, so parsed positions work on either container.
func Lookup(root *Value, p Position) (*Value, bool) {
	cur := root
	for _, s := range p {
		switch cur.Kind() {
		case KindMap:
			child, ok := cur.m.Get(s.String())
			if !ok {
				return nil, false
			}
			cur = child
		case KindList:
			i, ok := s.Index()
			if !ok {
				n, err := strconv.Atoi(s.key)
				if err != nil {
					return nil, false
				}
				i = n
			}
			if i < 0 || i >= len(cur.list) {
				return nil, false
			}
			cur = cur.list[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}
