// Package codec converts value trees to and from configuration file formats.
//
// JSON and YAML preserve document key order. TOML and Lua documents are
// decoded with their keys sorted.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/plugconf/internal/value"
)

// ErrUnsupported is returned for unknown formats and for trees a format
// cannot represent.
var ErrUnsupported = errors.New("unsupported")

// Codec decodes and encodes one document format.
type Codec interface {
	// Name returns the format name, such as "json".
	Name() string

	// Decode parses a document. Empty documents decode to an empty map.
	Decode(data []byte) (*value.Value, error)

	// Encode renders a tree as a document.
	Encode(v *value.Value) ([]byte, error)
}

// ParseError reports a malformed document.
type ParseError struct {
	Format  string
	Source  string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	src := e.Source
	if src == "" {
		src = "<input>"
	}
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s parse error in %s at line %d, column %d: %s", e.Format, src, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s parse error in %s at line %d: %s", e.Format, src, e.Line, e.Message)
	}
	return fmt.Sprintf("%s parse error in %s: %s", e.Format, src, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ByName returns the codec for a format name. Names are case-insensitive and
// "yml" is accepted for YAML.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "json":
		return JSON{Indent: "  "}, nil
	case "yaml", "yml":
		return YAML{}, nil
	case "toml":
		return TOML{}, nil
	case "lua":
		return Lua{}, nil
	}
	return nil, fmt.Errorf("format %q: %w", name, ErrUnsupported)
}

// ForPath chooses a codec from a file extension.
func ForPath(path string) (Codec, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("file %s has no extension: %w", path, ErrUnsupported)
	}
	c, err := ByName(ext)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", path, err)
	}
	return c, nil
}

// DecodeSource decodes data and records source in any ParseError.
func DecodeSource(c Codec, source string, data []byte) (*value.Value, error) {
	v, err := c.Decode(data)
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Source = source
	}
	return v, err
}

func blank(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}
