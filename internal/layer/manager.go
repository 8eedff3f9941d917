package layer

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dshills/plugconf/internal/merge"
	"github.com/dshills/plugconf/internal/value"
)

var (
	// ErrLayerNotFound is returned for operations naming an unknown layer.
	ErrLayerNotFound = errors.New("layer not found")

	// ErrReadOnly is returned when modifying a read-only layer.
	ErrReadOnly = errors.New("layer is read-only")
)

// Manager stacks layers by priority and folds them into one tree with the
// merge engine. Higher priorities win.
type Manager struct {
	mu sync.RWMutex

	// layers is ordered by ascending priority.
	layers []*Layer

	// merged caches the fold until dirty is set.
	merged *value.Value
	dirty  bool
}

// NewManager returns a Manager without layers.
func NewManager() *Manager {
	return &Manager{dirty: true}
}

// AddLayer inserts layer by priority. Among equal priorities the layer
// added last wins.
func (m *Manager) AddLayer(layer *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if layer.Data == nil {
		layer.Data = value.EmptyMap()
	}
	m.layers = append(m.layers, layer)
	m.sortLayers()
	m.dirty = true
}

// RemoveLayer drops the named layer and reports whether it existed.
func (m *Manager) RemoveLayer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(name)
	if i < 0 {
		return false
	}
	m.layers = slices.Delete(m.layers, i, i+1)
	m.dirty = true
	return true
}

// GetLayer returns the named layer, or nil.
func (m *Manager) GetLayer(name string) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLayer(name)
}

// GetLayerBySource returns the lowest priority layer from source, or nil.
func (m *Manager) GetLayerBySource(source Source) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := slices.IndexFunc(m.layers, func(l *Layer) bool { return l.Source == source })
	if i < 0 {
		return nil
	}
	return m.layers[i]
}

// Layers returns the layers in ascending priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.layers)
}

// LayerCount returns how many layers are stacked.
func (m *Manager) LayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.layers)
}

// Merged folds all layers into a single tree, lowest priority first.
// Results are cached until a layer is added, removed, or updated; callers
// receive their own copy.
func (m *Manager) Merged() *value.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergedData().Clone()
}

// mergedData returns the cached fold, rebuilding it when dirty. The caller
// holds the write lock and must not leak the result.
func (m *Manager) mergedData() *value.Value {
	if !m.dirty && m.merged != nil {
		return m.merged
	}
	data := make([]*value.Value, len(m.layers))
	for i, l := range m.layers {
		data[i] = l.Data
	}
	m.merged = merge.Merged(value.EmptyMap(), data...)
	m.dirty = false
	return m.merged
}

// Get returns the value at pos from the highest priority layer that sets
// it, along with that layer.
func (m *Manager) Get(pos value.Position) (*value.Value, *Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		layer := m.layers[i]
		if v, ok := value.Lookup(layer.Data, pos); ok {
			return v.Clone(), layer, true
		}
	}
	return nil, nil, false
}

// GetEffectiveValue returns a copy of the merged value at pos.
func (m *Manager) GetEffectiveValue(pos value.Position) (*value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := value.Lookup(m.mergedData(), pos)
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// Set stores a copy of v at pos in the named layer.
func (m *Manager) Set(layerName string, pos value.Position, v *value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	layer, err := m.writableLayer(layerName)
	if err != nil {
		return err
	}
	if err := value.SetAt(layer.Data, pos, v.Clone()); err != nil {
		return fmt.Errorf("layer %s: %w", layerName, err)
	}
	m.dirty = true
	return nil
}

// SetInSession stores a copy of v at pos in the session layer, adding
// that layer on first use.
func (m *Manager) SetInSession(pos value.Position, v *value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.layers, func(l *Layer) bool { return l.Source == SourceSession })
	var session *Layer
	if i >= 0 {
		session = m.layers[i]
	} else {
		session = NewLayer("session", SourceSession, PrioritySession)
		m.layers = append(m.layers, session)
		m.sortLayers()
	}

	if err := value.SetAt(session.Data, pos, v.Clone()); err != nil {
		return fmt.Errorf("layer %s: %w", session.Name, err)
	}
	m.dirty = true
	return nil
}

// Delete removes the value at pos from the named layer.
func (m *Manager) Delete(layerName string, pos value.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	layer, err := m.writableLayer(layerName)
	if err != nil {
		return err
	}
	if value.DeleteAt(layer.Data, pos) {
		m.dirty = true
	}
	return nil
}

// UpdateLayer replaces a layer's data with a copy of data.
func (m *Manager) UpdateLayer(name string, data *value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	layer, err := m.writableLayer(name)
	if err != nil {
		return err
	}
	if data == nil {
		data = value.EmptyMap()
	}
	layer.Data = data.Clone()
	m.dirty = true
	return nil
}

// GetLayerValue returns a copy of the value at pos in one layer only.
func (m *Manager) GetLayerValue(layerName string, pos value.Position) (*value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	layer := m.findLayer(layerName)
	if layer == nil {
		return nil, false
	}
	v, ok := value.Lookup(layer.Data, pos)
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// WhichLayer names the layer Get would answer from, or "".
func (m *Manager) WhichLayer(pos value.Position) string {
	_, layer, found := m.Get(pos)
	if !found {
		return ""
	}
	return layer.Name
}

// Invalidate drops the cached fold. Needed after editing a Layer's Data
// without going through the manager.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = true
}

// Clear removes every layer.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.layers = nil
	m.merged = nil
	m.dirty = true
}

func (m *Manager) sortLayers() {
	slices.SortStableFunc(m.layers, func(a, b *Layer) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
}

func (m *Manager) indexOf(name string) int {
	return slices.IndexFunc(m.layers, func(l *Layer) bool { return l.Name == name })
}

func (m *Manager) findLayer(name string) *Layer {
	if i := m.indexOf(name); i >= 0 {
		return m.layers[i]
	}
	return nil
}

func (m *Manager) writableLayer(name string) (*Layer, error) {
	layer := m.findLayer(name)
	if layer == nil {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, name)
	}
	if layer.ReadOnly {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	return layer, nil
}
