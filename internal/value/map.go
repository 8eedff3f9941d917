package value

import (
	"iter"

	"github.com/speakeasy-api/openapi/sequencedmap"
)

// Map is a string-keyed map that remembers insertion order. Order is used for
// rendering and traversal only; it never affects equality.
type Map struct {
	entries *sequencedmap.Map[string, *Value]
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{entries: sequencedmap.New[string, *Value]()}
}

func (m *Map) init() {
	if m.entries == nil {
		m.entries = sequencedmap.New[string, *Value]()
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil || m.entries == nil {
		return 0
	}
	return m.entries.Len()
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (*Value, bool) {
	if m.Len() == 0 {
		return nil, false
	}
	return m.entries.Get(key)
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores v under key. Existing keys keep their position.
func (m *Map) Set(key string, v *Value) {
	m.init()
	if v == nil {
		v = Null()
	}
	m.entries.Set(key, v)
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key string) bool {
	if !m.Has(key) {
		return false
	}
	m.entries.Delete(key)
	return true
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, m.Len())
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}

// All iterates the entries in insertion order.
func (m *Map) All() iter.Seq2[string, *Value] {
	return func(yield func(string, *Value) bool) {
		if m.Len() == 0 {
			return
		}
		for k, v := range m.entries.All() {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	out := NewMap()
	for k, v := range m.All() {
		out.entries.Set(k, v.Clone())
	}
	return out
}
