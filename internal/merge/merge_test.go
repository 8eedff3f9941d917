package merge

import (
	"testing"

	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/value"
)

var (
	kv   = value.KV
	mapv = value.MapOf
	list = value.ListOf
	i64  = value.Int
	str  = value.String
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		target   *value.Value
		source   *value.Value
		expected *value.Value
	}{
		{
			name:     "empty source is identity",
			target:   mapv(kv("a", i64(1))),
			source:   value.EmptyMap(),
			expected: mapv(kv("a", i64(1))),
		},
		{
			name:     "empty target takes source",
			target:   value.EmptyMap(),
			source:   mapv(kv("a", mapv(kv("b", list(i64(1)))))),
			expected: mapv(kv("a", mapv(kv("b", list(i64(1)))))),
		},
		{
			name:     "lists are replaced",
			target:   mapv(kv("a", list(i64(1), i64(2)))),
			source:   mapv(kv("a", list(i64(9)))),
			expected: mapv(kv("a", list(i64(9)))),
		},
		{
			name: "nested maps merge",
			target: mapv(kv("editor", mapv(
				kv("tabSize", i64(4)),
				kv("theme", str("dark")),
			))),
			source: mapv(kv("editor", mapv(
				kv("insertSpaces", value.Bool(true)),
				kv("theme", str("light")),
			))),
			expected: mapv(kv("editor", mapv(
				kv("tabSize", i64(4)),
				kv("theme", str("light")),
				kv("insertSpaces", value.Bool(true)),
			))),
		},
		{
			name:     "map replaces scalar",
			target:   mapv(kv("a", i64(1))),
			source:   mapv(kv("a", mapv(kv("b", i64(2))))),
			expected: mapv(kv("a", mapv(kv("b", i64(2))))),
		},
		{
			name:     "scalar replaces map",
			target:   mapv(kv("a", mapv(kv("b", i64(2))))),
			source:   mapv(kv("a", value.Null())),
			expected: mapv(kv("a", value.Null())),
		},
		{
			name:     "root scalars replace",
			target:   i64(1),
			source:   str("x"),
			expected: str("x"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Merge(tt.target, tt.source)
			if !value.Equal(tt.target, tt.expected) {
				t.Errorf("Merge() = %s, want %s", tt.target, tt.expected)
			}
		})
	}
}

func TestMergeCopiesSource(t *testing.T) {
	source := mapv(kv("new", mapv(kv("x", i64(1)))), kv("l", list(i64(1))))
	target := value.EmptyMap()
	Merge(target, source)

	tm, _ := target.AsMap()
	inserted, _ := tm.Get("new")
	im, _ := inserted.AsMap()
	im.Set("x", i64(99))
	replaced, _ := tm.Get("l")
	ref, _ := replaced.ListRef()
	*ref = append(*ref, i64(2))

	want := mapv(kv("new", mapv(kv("x", i64(1)))), kv("l", list(i64(1))))
	if !value.Equal(source, want) {
		t.Errorf("source changed through target: %s", source)
	}
}

func TestMergeKeepsTargetOrder(t *testing.T) {
	target := mapv(kv("b", i64(1)), kv("a", i64(2)))
	Merge(target, mapv(kv("c", i64(3)), kv("a", i64(4))))

	if got, want := target.String(), `{"b": 1, "a": 4, "c": 3}`; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestMergeNilSource(t *testing.T) {
	target := mapv(kv("a", i64(1)))
	Merge(target, nil)
	if !value.Equal(target, mapv(kv("a", i64(1)))) {
		t.Errorf("nil source changed target: %s", target)
	}
}

func TestMerged(t *testing.T) {
	base := mapv(kv("a", i64(1)))
	got := Merged(base, mapv(kv("b", i64(2))), mapv(kv("a", i64(3))))

	if !value.Equal(got, mapv(kv("a", i64(3)), kv("b", i64(2)))) {
		t.Errorf("Merged() = %s", got)
	}
	if !value.Equal(base, mapv(kv("a", i64(1)))) {
		t.Errorf("base modified: %s", base)
	}
}

func TestMergeObserver(t *testing.T) {
	var rec observe.Recorder
	target := mapv(kv("a", i64(1)))
	Merge(target, mapv(kv("a", i64(2)), kv("b", i64(3))), WithObserver(&rec))

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Op != observe.OpMergeReplace || events[0].Position.String() != "a" {
		t.Errorf("event[0] = %+v", events[0])
	}
	if events[1].Op != observe.OpMergeInsert || events[1].Position.String() != "b" {
		t.Errorf("event[1] = %+v", events[1])
	}
}
