// Package luabridge converts value trees to and from gopher-lua values and
// exposes the tree engines to Lua plugins as the "plugconf" module.
package luabridge

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dshills/plugconf/internal/value"
	lua "github.com/yuin/gopher-lua"
)

var (
	// ErrCycle is returned for tables that contain themselves.
	ErrCycle = errors.New("table contains a reference to itself")

	// ErrUnsupported is returned for Lua values with no tree equivalent,
	// such as functions and userdata.
	ErrUnsupported = errors.New("unsupported lua value")
)

// ToLua converts a tree to a Lua value. Lists become 1-based sequences and
// maps become tables with string keys. Null converts to nil, so null list
// elements leave holes and null map entries disappear.
func ToLua(L *lua.LState, v *value.Value) lua.LValue {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		return lua.LBool(b)
	case value.KindInt:
		i, _ := v.AsInt()
		return lua.LNumber(i)
	case value.KindFloat:
		f, _ := v.AsFloat()
		return lua.LNumber(f)
	case value.KindString:
		s, _ := v.AsString()
		return lua.LString(s)
	case value.KindList:
		items, _ := v.AsList()
		t := L.CreateTable(len(items), 0)
		for i, item := range items {
			t.RawSetInt(i+1, ToLua(L, item))
		}
		return t
	case value.KindMap:
		m, _ := v.AsMap()
		t := L.CreateTable(0, m.Len())
		for k, item := range m.All() {
			t.RawSetString(k, ToLua(L, item))
		}
		return t
	}
	return lua.LNil
}

// FromLua converts a Lua value to a tree.
//
// Tables whose keys are exactly 1..n become lists; other tables become maps
// with sorted keys, and the empty table becomes an empty map. Integral
// numbers that fit in int64 become Int.
func FromLua(lv lua.LValue) (*value.Value, error) {
	return fromLua(lv, nil, make(map[*lua.LTable]bool))
}

func fromLua(lv lua.LValue, pos value.Position, active map[*lua.LTable]bool) (*value.Value, error) {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return value.Null(), nil
	case lua.LBool:
		return value.Bool(bool(v)), nil
	case lua.LNumber:
		return fromNumber(float64(v)), nil
	case lua.LString:
		return value.String(string(v)), nil
	case *lua.LTable:
		// Only tables on the current path count; shared subtables are fine.
		if active[v] {
			return nil, fmt.Errorf("%s: %w", describe(pos), ErrCycle)
		}
		active[v] = true
		defer delete(active, v)
		return fromTable(v, pos, active)
	}
	return nil, fmt.Errorf("%s: %s: %w", describe(pos), lv.Type(), ErrUnsupported)
}

func fromNumber(f float64) *value.Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return value.Int(int64(f))
	}
	return value.Float(f)
}

func fromTable(t *lua.LTable, pos value.Position, active map[*lua.LTable]bool) (*value.Value, error) {
	if n := sequenceLen(t); n > 0 {
		items := make([]*value.Value, n)
		for i := range n {
			item, err := fromLua(t.RawGetInt(i+1), pos.Index(i), active)
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return value.ListOf(items...), nil
	}

	entries := make(map[string]lua.LValue)
	var keyErr error
	t.ForEach(func(k, item lua.LValue) {
		switch kv := k.(type) {
		case lua.LString:
			entries[string(kv)] = item
		case lua.LNumber:
			entries[fromNumber(float64(kv)).String()] = item
		default:
			if keyErr == nil {
				keyErr = fmt.Errorf("%s: %s key: %w", describe(pos), k.Type(), ErrUnsupported)
			}
		}
	})
	if keyErr != nil {
		return nil, keyErr
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	m := value.NewMap()
	for _, k := range keys {
		item, err := fromLua(entries[k], pos.Key(k), active)
		if err != nil {
			return nil, err
		}
		m.Set(k, item)
	}
	return value.FromMap(m), nil
}

// sequenceLen returns n when the table's keys are exactly 1..n, else 0.
func sequenceLen(t *lua.LTable) int {
	count, maxN := 0, 0
	isArray := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		kn, ok := k.(lua.LNumber)
		if !ok {
			isArray = false
			return
		}
		n := int(kn)
		if float64(n) != float64(kn) || n < 1 {
			isArray = false
			return
		}
		maxN = max(maxN, n)
	})
	if !isArray || count != maxN {
		return 0
	}
	return maxN
}

func describe(pos value.Position) string {
	if pos.IsRoot() {
		return "value"
	}
	return pos.String()
}
