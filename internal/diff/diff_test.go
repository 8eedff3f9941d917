package diff

import (
	"slices"
	"strings"
	"testing"

	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/value"
)

var (
	kv    = value.KV
	mapv  = value.MapOf
	list  = value.ListOf
	i64   = value.Int
	f64   = value.Float
	str   = value.String
	boolv = value.Bool
)

func render(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.String()
	}
	return out
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old, new *value.Value
		want     []string
	}{
		{
			name: "identical",
			old:  mapv(kv("a", list(i64(1)))),
			new:  mapv(kv("a", list(i64(1)))),
		},
		{
			name: "map order ignored",
			old:  mapv(kv("a", i64(1)), kv("b", i64(2))),
			new:  mapv(kv("b", i64(2)), kv("a", i64(1))),
		},
		{
			name: "old keys first then new only keys",
			old:  mapv(kv("keep", str("x")), kv("gone", i64(1)), kv("edit", str("a"))),
			new:  mapv(kv("fresh", boolv(true)), kv("edit", str("b")), kv("keep", str("x"))),
			want: []string{
				"gone value `1` removed",
				"edit value `\"a\"` updated to new value `\"b\"`",
				"fresh value `true` added",
			},
		},
		{
			name: "numeric increase and decrease",
			old:  mapv(kv("up", i64(1)), kv("down", f64(2.5))),
			new:  mapv(kv("up", i64(4)), kv("down", f64(1))),
			want: []string{
				"up value `1` increased by 3 to new value `4`",
				"down value `2.5` decreased by 1.5 to new value `1.0`",
			},
		},
		{
			name: "mixed numeric kinds",
			old:  i64(2),
			new:  f64(2.5),
			want: []string{"value `2` increased by 0.5 to new value `2.5`"},
		},
		{
			name: "same magnitude different kind",
			old:  i64(1),
			new:  f64(1),
			want: []string{"value `1` changed from integer type to float type to new value `1.0`"},
		},
		{
			name: "kind mismatch is not descended",
			old:  mapv(kv("a", mapv(kv("x", i64(1))))),
			new:  mapv(kv("a", list(i64(1)))),
			want: []string{"a value `{\"x\": 1}` changed from map type to list type to new value `[1]`"},
		},
		{
			name: "list index by index with trailing additions",
			old:  list(str("a"), str("b")),
			new:  list(str("a"), str("c"), str("d"), str("e")),
			want: []string{
				"1 value `\"b\"` updated to new value `\"c\"`",
				"2 value `\"d\"` added",
				"3 value `\"e\"` added",
			},
		},
		{
			name: "list trailing removals nested",
			old:  mapv(kv("l", list(i64(1), i64(2), i64(3)))),
			new:  mapv(kv("l", list(i64(1)))),
			want: []string{
				"[l][1] value `2` removed",
				"[l][2] value `3` removed",
			},
		},
		{
			name: "deep position",
			old:  mapv(kv("a", list(mapv(kv("b", value.Null()))))),
			new:  mapv(kv("a", list(mapv(kv("b", str("x")))))),
			want: []string{"[a][0][b] value `null` changed from null type to string type to new value `\"x\"`"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(Collect(tt.old, tt.new))
			if !slices.Equal(got, tt.want) {
				t.Errorf("records:\n got: %q\nwant: %q", got, tt.want)
			}
		})
	}
}

func TestDiffDelta(t *testing.T) {
	recs := Collect(i64(10), i64(3))
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	r := recs[0]
	if r.Action != Decreased {
		t.Errorf("Action = %v, want decreased", r.Action)
	}
	if !value.Equal(r.Delta, i64(7)) {
		t.Errorf("Delta = %s, want 7", r.Delta)
	}
}

func TestDiffIntOverflowFallsBackToFloat(t *testing.T) {
	recs := Collect(i64(-1<<63), i64(1<<62))
	if len(recs) != 1 || recs[0].Action != Increased {
		t.Fatalf("records = %v", render(recs))
	}
	if recs[0].Delta.Kind() != value.KindFloat {
		t.Errorf("Delta kind = %v, want float", recs[0].Delta.Kind())
	}
}

func TestDiffDoesNotMutate(t *testing.T) {
	old := mapv(kv("a", list(i64(1), i64(2))))
	new := mapv(kv("a", list(i64(3))), kv("b", str("x")))
	oldCopy, newCopy := old.Clone(), new.Clone()

	Collect(old, new)

	if !value.Equal(old, oldCopy) || !value.Equal(new, newCopy) {
		t.Error("inputs mutated")
	}
}

func TestDiffSymmetry(t *testing.T) {
	a := mapv(
		kv("n", i64(1)),
		kv("f", f64(0.5)),
		kv("s", str("x")),
		kv("l", list(i64(1), i64(2))),
		kv("only_a", value.Null()),
		kv("m", mapv(kv("k", boolv(true)))),
	)
	b := mapv(
		kv("n", i64(5)),
		kv("f", f64(0.25)),
		kv("s", list()),
		kv("l", list(i64(1), i64(2), i64(9))),
		kv("m", mapv(kv("k", boolv(false)), kv("extra", i64(0)))),
		kv("only_b", str("y")),
	)

	forward := Collect(a, b)
	backward := Invert(Collect(b, a))

	key := func(rs []Record) []string {
		out := render(rs)
		slices.Sort(out)
		return out
	}
	if got, want := key(backward), key(forward); !slices.Equal(got, want) {
		t.Errorf("inverted backward diff differs:\n got: %s\nwant: %s",
			strings.Join(got, "\n      "), strings.Join(want, "\n      "))
	}
}

func TestDiffObserver(t *testing.T) {
	var rec observe.Recorder
	var emitted int
	Diff(list(i64(1)), list(i64(2), i64(3)), func(Record) { emitted++ }, WithObserver(&rec))

	if emitted != 2 {
		t.Fatalf("emitted %d records, want 2", emitted)
	}
	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("observed %d events, want 2", len(events))
	}
	if events[1].Op != observe.OpDiffRecord || events[1].Position.String() != "1" {
		t.Errorf("event = %+v", events[1])
	}
}

func TestDiffWithBase(t *testing.T) {
	base := value.Position{}.Key("plugins").Key("git")
	recs := Collect(i64(1), i64(2), WithBase(base))
	if got := recs[0].Position.String(); got != "[plugins][git]" {
		t.Errorf("Position = %q", got)
	}
}

func TestRecordInvert(t *testing.T) {
	r := Record{Action: Added, New: i64(1)}
	inv := r.Invert()
	if inv.Action != Removed || inv.Old == nil || inv.New != nil {
		t.Errorf("Invert() = %+v", inv)
	}
}
