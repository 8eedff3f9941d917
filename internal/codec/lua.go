package codec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dshills/plugconf/internal/luabridge"
	"github.com/dshills/plugconf/internal/value"
)

// Lua reads configuration written as a Lua chunk returning a table, and
// writes trees as such chunks. Scripts run in a sandbox without io, os or
// file loading. Lua has a single number type, so integral floats read back
// as integers, and tables cannot hold nil, so Null cannot be encoded.
type Lua struct {
	// Timeout bounds the script's run time; zero means the default.
	Timeout time.Duration
}

// Name implements Codec.
func (Lua) Name() string { return "lua" }

// Decode implements Codec.
func (c Lua) Decode(data []byte) (*value.Value, error) {
	if blank(data) {
		return value.EmptyMap(), nil
	}
	var opts []luabridge.ScriptOption
	if c.Timeout > 0 {
		opts = append(opts, luabridge.WithTimeout(c.Timeout))
	}
	v, err := luabridge.Eval(context.Background(), "config", data, opts...)
	if err != nil {
		pe := &ParseError{Format: "lua", Message: err.Error(), Err: err}
		var se *luabridge.ScriptError
		if errors.As(err, &se) {
			pe.Line = se.Line
			pe.Message = se.Message
		}
		return nil, pe
	}
	if v.IsNull() {
		return value.EmptyMap(), nil
	}
	return v, nil
}

// Encode implements Codec.
func (Lua) Encode(v *value.Value) ([]byte, error) {
	var b strings.Builder
	b.WriteString("return ")
	if err := appendLua(&b, v, 0); err != nil {
		return nil, err
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func appendLua(b *strings.Builder, v *value.Value, depth int) error {
	switch v.Kind() {
	case value.KindNull:
		return fmt.Errorf("lua: null: %w", ErrUnsupported)
	case value.KindBool:
		b.WriteString(v.String())
	case value.KindInt:
		b.WriteString(v.String())
	case value.KindFloat:
		f, _ := v.AsFloat()
		switch {
		case math.IsNaN(f):
			b.WriteString("0/0")
		// math.huge is math.MaxFloat64 in gopher-lua, not an infinity.
		case math.IsInf(f, 1):
			b.WriteString("1/0")
		case math.IsInf(f, -1):
			b.WriteString("-1/0")
		default:
			b.WriteString(value.FormatFloat(f))
		}
	case value.KindString:
		s, _ := v.AsString()
		appendLuaString(b, s)
	case value.KindList:
		l, _ := v.AsList()
		if len(l) == 0 {
			b.WriteString("{}")
			return nil
		}
		b.WriteString("{\n")
		for _, item := range l {
			indent(b, depth+1)
			if err := appendLua(b, item, depth+1); err != nil {
				return err
			}
			b.WriteString(",\n")
		}
		indent(b, depth)
		b.WriteByte('}')
	case value.KindMap:
		m, _ := v.AsMap()
		if m.Len() == 0 {
			b.WriteString("{}")
			return nil
		}
		b.WriteString("{\n")
		for k, item := range m.All() {
			indent(b, depth+1)
			if identifier(k) {
				b.WriteString(k)
			} else {
				b.WriteByte('[')
				appendLuaString(b, k)
				b.WriteByte(']')
			}
			b.WriteString(" = ")
			if err := appendLua(b, item, depth+1); err != nil {
				return err
			}
			b.WriteString(",\n")
		}
		indent(b, depth)
		b.WriteByte('}')
	}
	return nil
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

// appendLuaString writes s as a double quoted Lua string. Control bytes use
// three digit decimal escapes; other bytes are written as is.
func appendLuaString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(b, "\\%03d", c)
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

var luaKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

func identifier(s string) bool {
	if s == "" || luaKeywords[s] {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

