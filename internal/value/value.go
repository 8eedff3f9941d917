// Package value provides the dynamically typed tree used to describe plugin
// configuration and state.
//
// A Value holds exactly one of null, boolean, integer, float, string, list or
// map. Accessors never coerce: asking a Float for an integer fails with a
// *TypeMismatchError. Handles returned by the Ref accessors and AsMap point
// into the owned node, so writes through them are visible to the tree.
//
// Trees are plain mutable aggregates. They carry no internal locking and must
// not contain cycles.
package value

import "math"

// Value is a node in a value tree. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list List
	m    *Map
}

// List is an ordered sequence of values.
type List []*Value

// Entry is a key/value pair used to build maps.
type Entry struct {
	Key   string
	Value *Value
}

// KV returns an Entry.
func KV(key string, v *Value) Entry {
	return Entry{Key: key, Value: v}
}

// Null returns a null value.
func Null() *Value { return &Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) *Value { return &Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) *Value { return &Value{kind: KindInt, i: i} }

// Float returns a float value.
func Float(f float64) *Value { return &Value{kind: KindFloat, f: f} }

// String returns a string value.
func String(s string) *Value { return &Value{kind: KindString, s: s} }

// ListOf returns a list holding items. Nil items are stored as null.
func ListOf(items ...*Value) *Value {
	l := make(List, len(items))
	for i, item := range items {
		if item == nil {
			item = Null()
		}
		l[i] = item
	}
	return &Value{kind: KindList, list: l}
}

// EmptyMap returns a map value with no entries.
func EmptyMap() *Value {
	return &Value{kind: KindMap, m: NewMap()}
}

// MapOf returns a map value holding entries in the given order. A repeated
// key keeps its first position and its last value.
func MapOf(entries ...Entry) *Value {
	m := NewMap()
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return &Value{kind: KindMap, m: m}
}

// FromMap wraps an existing map. The map is not copied.
func FromMap(m *Map) *Value {
	if m == nil {
		m = NewMap()
	}
	return &Value{kind: KindMap, m: m}
}

// Kind returns the variant held by v. A nil *Value reports KindNull.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v is null or nil.
func (v *Value) IsNull() bool { return v.Kind() == KindNull }

// IsMap reports whether v holds a map.
func (v *Value) IsMap() bool { return v.Kind() == KindMap }

// IsList reports whether v holds a list.
func (v *Value) IsList() bool { return v.Kind() == KindList }

// AsBool returns the boolean held by v.
func (v *Value) AsBool() (bool, error) {
	if v.Kind() != KindBool {
		return false, mismatch(KindBool, v.Kind())
	}
	return v.b, nil
}

// AsInt returns the integer held by v.
func (v *Value) AsInt() (int64, error) {
	if v.Kind() != KindInt {
		return 0, mismatch(KindInt, v.Kind())
	}
	return v.i, nil
}

// AsFloat returns the float held by v.
func (v *Value) AsFloat() (float64, error) {
	if v.Kind() != KindFloat {
		return 0, mismatch(KindFloat, v.Kind())
	}
	return v.f, nil
}

// AsString returns the string held by v.
func (v *Value) AsString() (string, error) {
	if v.Kind() != KindString {
		return "", mismatch(KindString, v.Kind())
	}
	return v.s, nil
}

// AsList returns the list held by v. The returned slice shares its elements
// with the tree; use ListRef to change its length.
func (v *Value) AsList() (List, error) {
	if v.Kind() != KindList {
		return nil, mismatch(KindList, v.Kind())
	}
	return v.list, nil
}

// AsMap returns a handle to the map held by v.
func (v *Value) AsMap() (*Map, error) {
	if v.Kind() != KindMap {
		return nil, mismatch(KindMap, v.Kind())
	}
	return v.m, nil
}

// BoolRef returns a pointer to the boolean stored in v.
func (v *Value) BoolRef() (*bool, error) {
	if v.Kind() != KindBool {
		return nil, mismatch(KindBool, v.Kind())
	}
	return &v.b, nil
}

// IntRef returns a pointer to the integer stored in v.
func (v *Value) IntRef() (*int64, error) {
	if v.Kind() != KindInt {
		return nil, mismatch(KindInt, v.Kind())
	}
	return &v.i, nil
}

// FloatRef returns a pointer to the float stored in v.
func (v *Value) FloatRef() (*float64, error) {
	if v.Kind() != KindFloat {
		return nil, mismatch(KindFloat, v.Kind())
	}
	return &v.f, nil
}

// StringRef returns a pointer to the string stored in v.
func (v *Value) StringRef() (*string, error) {
	if v.Kind() != KindString {
		return nil, mismatch(KindString, v.Kind())
	}
	return &v.s, nil
}

// ListRef returns a pointer to the list stored in v.
func (v *Value) ListRef() (*List, error) {
	if v.Kind() != KindList {
		return nil, mismatch(KindList, v.Kind())
	}
	return &v.list, nil
}

// Number returns v as a float64 when v is an Int or a Float.
func (v *Value) Number() (float64, bool) {
	switch v.Kind() {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Assign replaces the contents of v with a deep copy of src.
func (v *Value) Assign(src *Value) {
	if src == nil {
		*v = Value{}
		return
	}
	*v = *src.Clone()
}

// Update makes v equal to src in place. Where v and src hold the same
// container kind, v keeps its map, list and child nodes and only their
// contents change, so handles taken from v stay attached to the tree. Keys
// already in v keep their position; new keys follow in src order.
func (v *Value) Update(src *Value) {
	if src == nil {
		src = Null()
	}
	switch {
	case v.kind == KindMap && src.kind == KindMap:
		if v.m == nil {
			v.m = NewMap()
		}
		for _, k := range v.m.Keys() {
			if !src.m.Has(k) {
				v.m.Delete(k)
			}
		}
		for k, item := range src.m.All() {
			if cur, ok := v.m.Get(k); ok {
				cur.Update(item)
			} else {
				v.m.Set(k, item.Clone())
			}
		}
	case v.kind == KindList && src.kind == KindList:
		n := min(len(v.list), len(src.list))
		for i := range n {
			v.list[i].Update(src.list[i])
		}
		if len(src.list) < len(v.list) {
			clear(v.list[n:])
			v.list = v.list[:n]
		}
		for _, item := range src.list[n:] {
			v.list = append(v.list, item.Clone())
		}
	default:
		*v = *src.Clone()
	}
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := *v
	switch v.kind {
	case KindList:
		out.list = make(List, len(v.list))
		for i, item := range v.list {
			out.list[i] = item.Clone()
		}
	case KindMap:
		out.m = v.m.Clone()
	}
	return &out
}

// Equal reports whether a and b are structurally equal. Integers never equal
// floats and map order is ignored.
func Equal(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if a.m.Len() != b.m.Len() {
			return false
		}
		for k, av := range a.m.All() {
			bv, ok := b.m.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether v and other are structurally equal.
func (v *Value) Equal(other *Value) bool {
	return Equal(v, other)
}
