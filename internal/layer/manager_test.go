package layer

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dshills/plugconf/internal/loader"
	"github.com/dshills/plugconf/internal/value"
)

func pos(keys ...string) value.Position {
	var p value.Position
	for _, k := range keys {
		p = p.Key(k)
	}
	return p
}

func TestManager_AddLayer(t *testing.T) {
	m := NewManager()

	m.AddLayer(NewLayer("workspace", SourceWorkspace, PriorityWorkspace))
	m.AddLayer(NewLayer("defaults", SourceDefaults, PriorityDefaults))
	m.AddLayer(NewLayer("user", SourceUser, PriorityUser))

	if m.LayerCount() != 3 {
		t.Errorf("LayerCount() = %d, want 3", m.LayerCount())
	}

	layers := m.Layers()
	for i, want := range []string{"defaults", "user", "workspace"} {
		if layers[i].Name != want {
			t.Errorf("layers[%d] = %s, want %s", i, layers[i].Name, want)
		}
	}
}

func TestManager_RemoveLayer(t *testing.T) {
	m := NewManager()
	m.AddLayer(NewLayer("test1", SourceDefaults, PriorityDefaults))
	m.AddLayer(NewLayer("test2", SourceUser, PriorityUser))

	if !m.RemoveLayer("test1") {
		t.Error("RemoveLayer should return true for existing layer")
	}
	if m.LayerCount() != 1 {
		t.Errorf("LayerCount() = %d, want 1", m.LayerCount())
	}
	if m.RemoveLayer("nonexistent") {
		t.Error("RemoveLayer should return false for non-existing layer")
	}
	if m.GetLayerBySource(SourceUser) == nil {
		t.Error("GetLayerBySource(SourceUser) = nil")
	}
}

func newStack() *Manager {
	m := NewManager()
	m.AddLayer(NewLayerWithData("defaults", SourceDefaults, PriorityDefaults, value.MapOf(
		value.KV("git", value.MapOf(
			value.KV("enabled", value.Bool(true)),
			value.KV("interval", value.Int(60)),
		)),
		value.KV("theme", value.String("dark")),
	)))
	m.AddLayer(NewLayerWithData("user", SourceUser, PriorityUser, value.MapOf(
		value.KV("git", value.MapOf(value.KV("interval", value.Int(30)))),
		value.KV("plugins", value.ListOf(value.String("git"))),
	)))
	return m
}

func TestManager_Merged(t *testing.T) {
	m := newStack()

	want := `{"git": {"enabled": true, "interval": 30}, "theme": "dark", "plugins": ["git"]}`
	if got := m.Merged().String(); got != want {
		t.Errorf("Merged() = %s, want %s", got, want)
	}

	// Callers get a copy.
	merged := m.Merged()
	value.DeleteAt(merged, pos("theme"))
	if v, ok := m.GetEffectiveValue(pos("theme")); !ok || !value.Equal(v, value.String("dark")) {
		t.Errorf("theme = %v after mutating a copy", v)
	}

	// Layers never see each other's nodes.
	def := m.GetLayer("defaults")
	if v, _ := value.Lookup(def.Data, pos("git", "interval")); !value.Equal(v, value.Int(60)) {
		t.Errorf("defaults git.interval = %s, want 60", v)
	}
}

func TestManager_Get(t *testing.T) {
	m := newStack()

	tests := []struct {
		pos       value.Position
		wantLayer string
		want      *value.Value
	}{
		{pos("git", "interval"), "user", value.Int(30)},
		{pos("git", "enabled"), "defaults", value.Bool(true)},
		{pos("plugins").Index(0), "user", value.String("git")},
	}
	for _, tt := range tests {
		t.Run(tt.pos.String(), func(t *testing.T) {
			v, layer, ok := m.Get(tt.pos)
			if !ok {
				t.Fatal("not found")
			}
			if layer.Name != tt.wantLayer || !value.Equal(v, tt.want) {
				t.Errorf("Get = %s from %s, want %s from %s", v, layer.Name, tt.want, tt.wantLayer)
			}
			if got := m.WhichLayer(tt.pos); got != tt.wantLayer {
				t.Errorf("WhichLayer = %s, want %s", got, tt.wantLayer)
			}
		})
	}

	if _, _, ok := m.Get(pos("missing")); ok {
		t.Error("Get(missing) found a value")
	}
	if m.WhichLayer(pos("missing")) != "" {
		t.Error("WhichLayer(missing) should be empty")
	}
}

func TestManager_SetAndDelete(t *testing.T) {
	m := newStack()

	if err := m.Set("user", pos("lsp", "enabled"), value.Bool(false)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok := m.GetEffectiveValue(pos("lsp", "enabled")); !ok || !value.Equal(v, value.Bool(false)) {
		t.Errorf("lsp.enabled = %v", v)
	}

	if err := m.Delete("user", pos("git", "interval")); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.GetEffectiveValue(pos("git", "interval")); !value.Equal(v, value.Int(60)) {
		t.Errorf("git.interval = %s after delete, want default 60", v)
	}

	if err := m.Set("nope", pos("a"), value.Int(1)); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("Set(unknown layer) = %v", err)
	}

	m.GetLayer("defaults").ReadOnly = true
	if err := m.Set("defaults", pos("a"), value.Int(1)); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set(read-only) = %v", err)
	}
	if err := m.UpdateLayer("defaults", value.EmptyMap()); !errors.Is(err, ErrReadOnly) {
		t.Errorf("UpdateLayer(read-only) = %v", err)
	}
}

func TestManager_SetInSession(t *testing.T) {
	m := newStack()
	if err := m.SetInSession(pos("theme"), value.String("light")); err != nil {
		t.Fatal(err)
	}
	v, layer, ok := m.Get(pos("theme"))
	if !ok || layer.Source != SourceSession || !value.Equal(v, value.String("light")) {
		t.Errorf("Get(theme) = %v from %v", v, layer)
	}
	if m.Layers()[m.LayerCount()-1].Name != "session" {
		t.Error("session layer should sort last")
	}
}

func TestManager_UpdateLayer(t *testing.T) {
	m := newStack()
	data := value.MapOf(value.KV("theme", value.String("solarized")))
	if err := m.UpdateLayer("user", data); err != nil {
		t.Fatal(err)
	}
	value.SetAt(data, pos("theme"), value.String("mutated"))

	want := `{"git": {"enabled": true, "interval": 60}, "theme": "solarized"}`
	if got := m.Merged().String(); got != want {
		t.Errorf("Merged() = %s, want %s", got, want)
	}
	if v, ok := m.GetLayerValue("user", pos("theme")); !ok || !value.Equal(v, value.String("solarized")) {
		t.Errorf("GetLayerValue = %v", v)
	}
}

func TestManager_Clear(t *testing.T) {
	m := newStack()
	m.Clear()
	if m.LayerCount() != 0 {
		t.Errorf("LayerCount() = %d after Clear", m.LayerCount())
	}
	if got := m.Merged().String(); got != "{}" {
		t.Errorf("Merged() = %s after Clear", got)
	}
}

func TestManager_Concurrent(t *testing.T) {
	m := newStack()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i%2 == 0 {
					_ = m.SetInSession(pos("counter"), value.Int(int64(j)))
				} else {
					m.Merged()
					m.Get(pos("git", "enabled"))
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.yaml")
	if err := os.WriteFile(path, []byte("theme: light\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	fl := loader.NewFileLoader()
	l, err := LoadFile(fl, "user", SourceUser, path)
	if err != nil {
		t.Fatal(err)
	}
	if l.Priority != PriorityUser || l.Path != path || l.Data.String() != `{"theme": "light"}` {
		t.Errorf("LoadFile = %+v", l)
	}

	missing, err := LoadFile(fl, "ws", SourceWorkspace, filepath.Join(dir, "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	if missing.Data.String() != "{}" {
		t.Errorf("missing file layer = %s", missing.Data)
	}
}

func TestLayer_Clone(t *testing.T) {
	l := NewLayerWithData("a", SourceUser, PriorityUser, value.MapOf(value.KV("x", value.Int(1))))
	c := l.Clone()
	value.SetAt(c.Data, pos("x"), value.Int(2))
	if l.Data.String() != `{"x": 1}` {
		t.Errorf("original mutated: %s", l.Data)
	}
	if SourceEnv.String() != "environment" || DefaultPriority(SourceEnv) != PriorityEnv {
		t.Error("source metadata mismatch")
	}
}
