package codec

import (
	"errors"
	"fmt"

	"github.com/dshills/plugconf/internal/value"
	"github.com/pelletier/go-toml/v2"
)

// TOML reads and writes TOML documents. Tables decode with sorted keys.
// TOML has no null, so trees holding Null cannot be encoded.
type TOML struct{}

// Name implements Codec.
func (TOML) Name() string { return "toml" }

// Decode implements Codec.
func (TOML) Decode(data []byte) (*value.Value, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		pe := &ParseError{Format: "toml", Message: err.Error(), Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			pe.Line, pe.Column = de.Position()
		}
		return nil, pe
	}
	if doc == nil {
		return value.EmptyMap(), nil
	}
	return value.FromAny(normalizeTOML(doc))
}

// normalizeTOML turns local date and time values into their TOML text.
func normalizeTOML(x any) any {
	switch t := x.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeTOML(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeTOML(item)
		}
		return t
	case toml.LocalDate:
		return t.String()
	case toml.LocalTime:
		return t.String()
	case toml.LocalDateTime:
		return t.String()
	}
	return x
}

// Encode implements Codec. The root must be a map.
func (TOML) Encode(v *value.Value) ([]byte, error) {
	if !v.IsMap() {
		return nil, fmt.Errorf("toml: document root must be a map, found %s: %w", v.Describe(), ErrUnsupported)
	}
	if err := checkTOML(v, nil); err != nil {
		return nil, err
	}
	out, err := toml.Marshal(v.ToAny())
	if err != nil {
		return nil, fmt.Errorf("toml: %w", err)
	}
	return out, nil
}

func checkTOML(v *value.Value, pos value.Position) error {
	switch v.Kind() {
	case value.KindNull:
		return fmt.Errorf("toml: %s: null: %w", describePos(pos), ErrUnsupported)
	case value.KindList:
		items, _ := v.AsList()
		for i, item := range items {
			if err := checkTOML(item, pos.Index(i)); err != nil {
				return err
			}
		}
	case value.KindMap:
		m, _ := v.AsMap()
		for k, item := range m.All() {
			if err := checkTOML(item, pos.Key(k)); err != nil {
				return err
			}
		}
	}
	return nil
}
