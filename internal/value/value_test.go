package value

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAccessorsRejectOtherKinds(t *testing.T) {
	f := Float(1.5)

	if _, err := f.AsInt(); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("AsInt on float: err = %v, want ErrTypeMismatch", err)
	}

	var tm *TypeMismatchError
	_, err := f.AsMap()
	if !errors.As(err, &tm) {
		t.Fatalf("AsMap on float: err = %v, want *TypeMismatchError", err)
	}
	if tm.Requested != KindMap || tm.Actual != KindFloat {
		t.Errorf("mismatch = %v/%v, want map/float", tm.Requested, tm.Actual)
	}
	if got, want := err.Error(), "type mismatch: requested map, found float"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRefsWriteThrough(t *testing.T) {
	root := MapOf(KV("n", Int(1)), KV("items", ListOf(String("a"))))
	m, err := root.AsMap()
	if err != nil {
		t.Fatal(err)
	}

	n, _ := m.Get("n")
	ref, err := n.IntRef()
	if err != nil {
		t.Fatal(err)
	}
	*ref = 42

	items, _ := m.Get("items")
	lref, err := items.ListRef()
	if err != nil {
		t.Fatal(err)
	}
	*lref = append(*lref, String("b"))

	want := MapOf(KV("n", Int(42)), KV("items", ListOf(String("a"), String("b"))))
	if !Equal(root, want) {
		t.Errorf("root = %s, want %s", root, want)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b *Value
		want bool
	}{
		{"int vs float", Int(1), Float(1.0), false},
		{"same ints", Int(7), Int(7), true},
		{"nil is null", nil, Null(), true},
		{"nan", Float(math.NaN()), Float(math.NaN()), true},
		{"list order matters", ListOf(Int(1), Int(2)), ListOf(Int(2), Int(1)), false},
		{
			"map order ignored",
			MapOf(KV("a", Int(1)), KV("b", Int(2))),
			MapOf(KV("b", Int(2)), KV("a", Int(1))),
			true,
		},
		{"map sizes differ", MapOf(KV("a", Null())), EmptyMap(), false},
		{"nested", MapOf(KV("a", ListOf(Bool(true)))), MapOf(KV("a", ListOf(Bool(false)))), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := MapOf(KV("list", ListOf(Int(1))), KV("map", MapOf(KV("x", String("y")))))
	clone := orig.Clone()

	m, _ := clone.AsMap()
	inner, _ := m.Get("map")
	im, _ := inner.AsMap()
	im.Set("x", String("changed"))
	m.Delete("list")

	want := MapOf(KV("list", ListOf(Int(1))), KV("map", MapOf(KV("x", String("y")))))
	if !Equal(orig, want) {
		t.Errorf("original mutated: %s", orig)
	}
}

func TestUpdateKeepsHandles(t *testing.T) {
	root := MapOf(
		KV("drop", Bool(true)),
		KV("inner", MapOf(KV("x", Int(1)))),
		KV("items", ListOf(String("a"), String("b"), String("c"))),
		KV("kind", String("map")),
	)
	m, _ := root.AsMap()
	innerNode, _ := m.Get("inner")
	inner, _ := innerNode.AsMap()
	itemsNode, _ := m.Get("items")
	items, _ := itemsNode.ListRef()
	first := (*items)[0]

	src := MapOf(
		KV("inner", MapOf(KV("x", Int(2)), KV("y", Int(3)))),
		KV("items", ListOf(String("z"), String("b"))),
		KV("kind", ListOf(Int(1))),
		KV("added", Null()),
	)
	root.Update(src)

	if !Equal(root, src) {
		t.Fatalf("root = %s, want %s", root, src)
	}
	if got, want := root.String(), `{"inner": {"x": 2, "y": 3}, "items": ["z", "b"], "kind": [1], "added": null}`; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
	if y, ok := inner.Get("y"); !ok || !Equal(y, Int(3)) {
		t.Errorf("map handle detached: y = %v", y)
	}
	if len(*items) != 2 || !Equal(first, String("z")) {
		t.Errorf("list handle detached: items = %v, first = %s", *items, first)
	}

	// Writes through old handles still reach the tree.
	inner.Set("w", Int(4))
	if got, _ := Lookup(root, Position{}.Key("inner").Key("w")); !Equal(got, Int(4)) {
		t.Errorf("inner.w = %v, want 4", got)
	}

	// src stays independent of root.
	srcMap, _ := src.AsMap()
	srcInner, _ := srcMap.Get("inner")
	if sm, _ := srcInner.AsMap(); sm.Has("w") {
		t.Error("Update shared nodes with src")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		v    *Value
		want string
	}{
		{Null(), "null"},
		{Bool(true), "true"},
		{Int(-3), "-3"},
		{Float(1), "1.0"},
		{Float(0.25), "0.25"},
		{Float(1e300), "1e+300"},
		{String(`say "hi"`), `"say \"hi\""`},
		{ListOf(Int(1), String("a")), `[1, "a"]`},
		{MapOf(KV("b", Int(1)), KV("a", ListOf())), `{"b": 1, "a": []}`},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestMapKeepsInsertionOrder(t *testing.T) {
	m := NewMap()
	m.Set("z", Int(1))
	m.Set("a", Int(2))
	m.Set("m", Int(3))
	m.Set("z", Int(4))

	if diff := cmp.Diff([]string{"z", "a", "m"}, m.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if !m.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if m.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestFromAnyToAny(t *testing.T) {
	in := map[string]any{
		"b":     []string{"x", "y"},
		"a":     uint8(3),
		"f":     float32(0.5),
		"n":     nil,
		"inner": map[string]int{"k": 1},
	}
	v, err := FromAny(in)
	if err != nil {
		t.Fatal(err)
	}

	m, _ := v.AsMap()
	if diff := cmp.Diff([]string{"a", "b", "f", "inner", "n"}, m.Keys()); diff != "" {
		t.Errorf("keys not sorted (-want +got):\n%s", diff)
	}

	want := map[string]any{
		"b":     []any{"x", "y"},
		"a":     int64(3),
		"f":     float64(0.5),
		"n":     nil,
		"inner": map[string]any{"k": int64(1)},
	}
	if diff := cmp.Diff(want, v.ToAny()); diff != "" {
		t.Errorf("ToAny mismatch (-want +got):\n%s", diff)
	}
}

func TestFromAnyErrors(t *testing.T) {
	if _, err := FromAny(uint64(math.MaxUint64)); err == nil {
		t.Error("expected overflow error")
	}
	if _, err := FromAny(map[int]string{1: "a"}); err == nil {
		t.Error("expected key type error")
	}
	if _, err := FromAny(struct{}{}); err == nil {
		t.Error("expected unsupported type error")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		v    *Value
		want string
	}{
		{Null(), "null"},
		{String("x"), "string `\"x\"`"},
		{Int(5), "integer `5`"},
		{ListOf(), "empty list"},
		{ListOf(Int(1), Int(2)), "list with 2 items"},
		{MapOf(KV("a", Null())), "map with 1 key"},
	}
	for _, tt := range tests {
		if got := tt.v.Describe(); got != tt.want {
			t.Errorf("Describe(%s) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
