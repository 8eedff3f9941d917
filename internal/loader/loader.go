// Package loader reads configuration documents into value trees.
//
// Files are decoded with the codec matching their extension. A top-level
// "@include" key (a path or a list of paths, relative to the including
// file) pulls other documents in underneath the including one. Environment
// variables can be loaded as an overlay with EnvLoader.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dshills/plugconf/internal/codec"
	"github.com/dshills/plugconf/internal/merge"
	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/value"
)

// IncludeKey is the directive naming documents to include.
const IncludeKey = "@include"

// DefaultMaxIncludeDepth bounds nested includes.
const DefaultMaxIncludeDepth = 8

var (
	// ErrIncludeDepthExceeded is returned when includes nest too deeply,
	// which is usually an include cycle.
	ErrIncludeDepthExceeded = errors.New("include depth exceeded")

	// ErrInvalidInclude is returned when @include is not a string or a list
	// of strings.
	ErrInvalidInclude = errors.New("@include must be a string or a list of strings")
)

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the default file system (OS).
func DefaultFS() FileSystem {
	return OSFS{}
}

// Option configures a FileLoader.
type Option func(*FileLoader)

// WithFS sets the file system files are read from.
func WithFS(fsys FileSystem) Option {
	return func(l *FileLoader) {
		l.fs = fsys
	}
}

// WithMaxIncludeDepth sets how deeply includes may nest.
func WithMaxIncludeDepth(depth int) Option {
	return func(l *FileLoader) {
		l.maxDepth = depth
	}
}

// WithObserver receives merge events produced while resolving includes.
func WithObserver(o observe.Observer) Option {
	return func(l *FileLoader) {
		l.observer = observe.OrNop(o)
	}
}

// FileLoader loads configuration files.
type FileLoader struct {
	fs       FileSystem
	maxDepth int
	observer observe.Observer
}

// NewFileLoader creates a loader reading from the OS file system.
func NewFileLoader(opts ...Option) *FileLoader {
	l := &FileLoader{
		fs:       DefaultFS(),
		maxDepth: DefaultMaxIncludeDepth,
		observer: observe.Nop{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the document at path and resolves its includes.
// Returns nil, nil if the file doesn't exist (not an error).
func (l *FileLoader) Load(path string) (*value.Value, error) {
	v, err := l.load(path, l.maxDepth)
	if errors.Is(err, fs.ErrNotExist) && v == nil {
		var pe *fs.PathError
		if errors.As(err, &pe) && pe.Path == path {
			return nil, nil
		}
	}
	return v, err
}

// Decode decodes data as the format of path without touching the file
// system. Includes are not resolved.
func (l *FileLoader) Decode(path string, data []byte) (*value.Value, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, err
	}
	return codec.DecodeSource(c, path, data)
}

func (l *FileLoader) load(path string, depth int) (*value.Value, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrIncludeDepthExceeded)
	}

	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &fs.PathError{Op: "load", Path: path, Err: fs.ErrNotExist}
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	doc, err := l.Decode(path, data)
	if err != nil {
		return nil, err
	}

	m, err := doc.AsMap()
	if err != nil {
		return doc, nil
	}
	directive, ok := m.Get(IncludeKey)
	if !ok {
		return doc, nil
	}
	m.Delete(IncludeKey)

	includes, err := includePaths(directive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Later includes override earlier ones; the including file overrides
	// them all.
	base := value.EmptyMap()
	baseDir := filepath.Dir(path)
	for _, inc := range includes {
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(baseDir, inc)
		}
		incDoc, err := l.load(incPath, depth-1)
		if err != nil {
			return nil, fmt.Errorf("loading include %s: %w", incPath, err)
		}
		merge.Merge(base, incDoc, merge.WithObserver(l.observer))
	}
	merge.Merge(base, doc, merge.WithObserver(l.observer))
	return base, nil
}

func includePaths(directive *value.Value) ([]string, error) {
	if s, err := directive.AsString(); err == nil {
		return []string{s}, nil
	}
	items, err := directive.AsList()
	if err != nil {
		return nil, fmt.Errorf("%w, found %s", ErrInvalidInclude, directive.Describe())
	}
	paths := make([]string, len(items))
	for i, item := range items {
		s, err := item.AsString()
		if err != nil {
			return nil, fmt.Errorf("%w, found %s at index %d", ErrInvalidInclude, item.Describe(), i)
		}
		paths[i] = s
	}
	return paths, nil
}
