package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dshills/plugconf/internal/value"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// JSON reads and writes JSON documents. Numbers without a fraction or
// exponent decode to integers. Encode output is compact when Indent is
// empty.
type JSON struct {
	Indent string
}

// Name implements Codec.
func (JSON) Name() string { return "json" }

// Decode implements Codec.
func (JSON) Decode(data []byte) (*value.Value, error) {
	if blank(data) {
		return value.EmptyMap(), nil
	}
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Format: "json", Message: "invalid JSON document"}
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) *value.Value {
	switch r.Type {
	case gjson.False:
		return value.Bool(false)
	case gjson.True:
		return value.Bool(true)
	case gjson.Number:
		raw := strings.TrimSpace(r.Raw)
		if !strings.ContainsAny(raw, ".eE") {
			if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return value.Int(i)
			}
		}
		return value.Float(r.Num)
	case gjson.String:
		return value.String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			var items []*value.Value
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromResult(item))
				return true
			})
			return value.ListOf(items...)
		}
		m := value.NewMap()
		r.ForEach(func(k, item gjson.Result) bool {
			m.Set(k.Str, fromResult(item))
			return true
		})
		return value.FromMap(m)
	}
	return value.Null()
}

// Encode implements Codec.
func (c JSON) Encode(v *value.Value) ([]byte, error) {
	out, err := appendJSON(nil, v, nil)
	if err != nil {
		return nil, err
	}
	if c.Indent == "" {
		return out, nil
	}
	return pretty.PrettyOptions(out, &pretty.Options{Width: 80, Indent: c.Indent}), nil
}

// marshalJSON encodes v compactly.
func marshalJSON(v *value.Value) ([]byte, error) {
	return appendJSON(nil, v, nil)
}

func appendJSON(dst []byte, v *value.Value, pos value.Position) ([]byte, error) {
	switch v.Kind() {
	case value.KindNull:
		return append(dst, "null"...), nil
	case value.KindBool:
		b, _ := v.AsBool()
		return strconv.AppendBool(dst, b), nil
	case value.KindInt:
		i, _ := v.AsInt()
		return strconv.AppendInt(dst, i, 10), nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("json: %s: float %v: %w", describePos(pos), f, ErrUnsupported)
		}
		return append(dst, value.FormatFloat(f)...), nil
	case value.KindString:
		s, _ := v.AsString()
		return appendString(dst, s), nil
	case value.KindList:
		items, _ := v.AsList()
		dst = append(dst, '[')
		for i, item := range items {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			if dst, err = appendJSON(dst, item, pos.Index(i)); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	default:
		m, _ := v.AsMap()
		dst = append(dst, '{')
		first := true
		for k, item := range m.All() {
			if !first {
				dst = append(dst, ',')
			}
			first = false
			dst = appendString(dst, k)
			dst = append(dst, ':')
			var err error
			if dst, err = appendJSON(dst, item, pos.Key(k)); err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	}
}

const hex = "0123456789abcdef"

func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				dst = append(dst, '\\', c)
			case c == '\n':
				dst = append(dst, '\\', 'n')
			case c == '\r':
				dst = append(dst, '\\', 'r')
			case c == '\t':
				dst = append(dst, '\\', 't')
			case c < 0x20:
				dst = append(dst, '\\', 'u', '0', '0', hex[c>>4], hex[c&0xf])
			default:
				dst = append(dst, c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, `�`...)
		} else {
			dst = append(dst, s[i:i+size]...)
		}
		i += size
	}
	return append(dst, '"')
}

func describePos(pos value.Position) string {
	if pos.IsRoot() {
		return "document root"
	}
	return pos.String()
}
