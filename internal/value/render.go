package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// String renders v canonically: scalars as literals, strings quoted, lists
// as [a, b] and maps as {"k": v} in insertion order.
func (v *Value) String() string {
	var b strings.Builder
	v.render(&b)
	return b.String()
}

func (v *Value) render(b *strings.Builder) {
	switch v.Kind() {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		b.WriteString(FormatFloat(v.f))
	case KindString:
		b.WriteString(strconv.Quote(v.s))
	case KindList:
		b.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				b.WriteString(", ")
			}
			item.render(b)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		i := 0
		for k, item := range v.m.All() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			item.render(b)
			i++
		}
		b.WriteByte('}')
	}
}

// FormatFloat renders f in its shortest round-trip form. Finite values always
// carry a decimal point or an exponent so they never read as integers.
func FormatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-4 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Describe returns a short description of v for error messages.
func (v *Value) Describe() string {
	switch v.Kind() {
	case KindNull:
		return "null"
	case KindList:
		return describeLen("list", len(v.list), "item")
	case KindMap:
		return describeLen("map", v.m.Len(), "key")
	default:
		return fmt.Sprintf("%s `%s`", v.Kind(), v)
	}
}

func describeLen(kind string, n int, unit string) string {
	switch n {
	case 0:
		return "empty " + kind
	case 1:
		return fmt.Sprintf("%s with 1 %s", kind, unit)
	default:
		return fmt.Sprintf("%s with %d %ss", kind, n, unit)
	}
}
