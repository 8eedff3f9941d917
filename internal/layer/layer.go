// Package layer stacks configuration trees by priority.
//
// Higher priority layers override values from lower priority layers. Maps
// merge key by key; any other value in a higher layer replaces the lower
// one outright.
package layer

import (
	"time"

	"github.com/dshills/plugconf/internal/loader"
	"github.com/dshills/plugconf/internal/value"
)

// Layer is one configuration tree in the stack.
type Layer struct {
	// Name is unique within a Manager.
	Name     string
	Priority int
	Source   Source

	// Path is empty unless the layer was read from a file.
	Path string

	// Data is the layer's tree, normally a map.
	Data *value.Value

	ModTime time.Time

	// ReadOnly layers reject Set, Delete and UpdateLayer.
	ReadOnly bool
}

// NewLayer creates an empty layer.
func NewLayer(name string, source Source, priority int) *Layer {
	return NewLayerWithData(name, source, priority, nil)
}

// NewLayerWithData creates a layer holding data. A nil tree is replaced by
// an empty map.
func NewLayerWithData(name string, source Source, priority int, data *value.Value) *Layer {
	if data == nil {
		data = value.EmptyMap()
	}
	return &Layer{
		Name:     name,
		Source:   source,
		Priority: priority,
		Data:     data,
		ModTime:  time.Now(),
	}
}

// LoadFile loads path into a new layer with the source's default priority.
// A missing file yields an empty layer.
func LoadFile(fl *loader.FileLoader, name string, source Source, path string) (*Layer, error) {
	data, err := fl.Load(path)
	if err != nil {
		return nil, err
	}
	l := NewLayerWithData(name, source, DefaultPriority(source), data)
	l.Path = path
	return l, nil
}

// Clone returns a copy of l whose tree shares nothing with l.
func (l *Layer) Clone() *Layer {
	c := *l
	c.Data = l.Data.Clone()
	return &c
}

// Source says where a layer's tree came from.
type Source uint8

// Layer sources, from lowest to highest default priority.
const (
	SourceDefaults Source = iota
	SourceSystem
	SourceUser
	SourceWorkspace
	SourcePlugin
	SourceEnv
	SourceArgs

	// SourceSession holds in-memory overrides such as command line -set
	// flags.
	SourceSession
)

// String returns the source name used in logs.
func (s Source) String() string {
	switch s {
	case SourceDefaults:
		return "defaults"
	case SourceSystem:
		return "system"
	case SourceUser:
		return "user"
	case SourceWorkspace:
		return "workspace"
	case SourcePlugin:
		return "plugin"
	case SourceEnv:
		return "environment"
	case SourceArgs:
		return "arguments"
	case SourceSession:
		return "session"
	default:
		return "unknown"
	}
}
