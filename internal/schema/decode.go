package schema

import (
	"math"
	"strings"

	"github.com/dshills/plugconf/internal/value"
)

// Decode reads a definition from its external notation. The root may be a
// type node such as {"type": "boolean"} or a field node such as
// {"definition": {...}, "default": ...}; for a field node the default is
// dropped, use DecodeField to keep it.
func Decode(v *value.Value) (Definition, error) {
	m, err := v.AsMap()
	if err != nil {
		return nil, decodeErr(nil, "expected map, found %s", v.Kind())
	}
	if m.Has("type") {
		return decodeType(v, nil)
	}
	f, err := decodeField(v, nil)
	if err != nil {
		return nil, err
	}
	return f.Definition, nil
}

// DecodeField reads a field node: {"definition": ..., "default": ...,
// "optional": ...}. A type node with optional "default" and "optional" keys
// is accepted as shorthand.
func DecodeField(name string, v *value.Value) (Field, error) {
	f, err := decodeField(v, nil)
	f.Name = name
	return f, err
}

// node tracks which keys of a map have been consumed so leftovers can be
// reported.
type node struct {
	m    *value.Map
	pos  value.Position
	seen map[string]bool
}

func newNode(v *value.Value, pos value.Position) (*node, error) {
	m, err := v.AsMap()
	if err != nil {
		return nil, decodeErr(pos, "expected map, found %s", v.Kind())
	}
	return &node{m: m, pos: pos, seen: make(map[string]bool)}, nil
}

func (n *node) take(key string) (*value.Value, bool) {
	v, ok := n.m.Get(key)
	if ok {
		n.seen[key] = true
	}
	return v, ok
}

func (n *node) skip(keys ...string) {
	for _, k := range keys {
		n.seen[k] = true
	}
}

func (n *node) finish() error {
	for _, k := range n.m.Keys() {
		if !n.seen[k] {
			return decodeErr(n.pos.Key(k), "unknown field %q", k)
		}
	}
	return nil
}

func (n *node) str(key string) (string, bool, error) {
	v, ok := n.take(key)
	if !ok {
		return "", false, nil
	}
	s, err := v.AsString()
	if err != nil {
		return "", true, decodeErr(n.pos.Key(key), "expected string, found %s", v.Kind())
	}
	return s, true, nil
}

func (n *node) boolean(key string) (bool, bool, error) {
	v, ok := n.take(key)
	if !ok {
		return false, false, nil
	}
	b, err := v.AsBool()
	if err != nil {
		return false, true, decodeErr(n.pos.Key(key), "expected boolean, found %s", v.Kind())
	}
	return b, true, nil
}

func decodeField(v *value.Value, pos value.Position) (Field, error) {
	n, err := newNode(v, pos)
	if err != nil {
		return Field{}, err
	}

	var f Field
	if d, ok := n.take("default"); ok {
		f.Default = d.Clone()
	}
	if f.Optional, _, err = n.boolean("optional"); err != nil {
		return Field{}, err
	}

	if n.m.Has("type") {
		f.Definition, err = decodeTypeNode(n)
		return f, err
	}

	if d, ok := n.take("definition"); ok {
		f.Definition, err = decodeType(d, pos.Key("definition"))
		if err != nil {
			return Field{}, err
		}
	} else {
		f.Definition = &Any{}
	}
	return f, n.finish()
}

func decodeType(v *value.Value, pos value.Position) (Definition, error) {
	n, err := newNode(v, pos)
	if err != nil {
		return nil, err
	}
	return decodeTypeNode(n)
}

func decodeTypeNode(n *node) (Definition, error) {
	typ, ok, err := n.str("type")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, decodeErr(n.pos, "missing field \"type\"")
	}

	var def Definition
	switch typ {
	case TypeAny:
		def = &Any{}
	case TypeBoolean:
		def = &Boolean{}
	case TypeInteger:
		def, err = decodeInteger(n)
	case TypeFloat:
		def, err = decodeFloat(n)
	case TypeNumber:
		var lo, hi *float64
		if lo, hi, err = decodeRange(n); err == nil {
			def = Number(lo, hi)
		}
	case TypeString:
		def, err = decodeString(n)
	case TypeEnum:
		def, err = decodeEnum(n)
	case TypeEither:
		def, err = decodeEither(n)
	case TypeList:
		def, err = decodeList(n)
	case TypeStaticMap:
		def, err = decodeStaticMap(n)
	case TypeDynamicMap:
		def, err = decodeDynamicMap(n)
	case TypePath:
		def, err = decodePath(n)
	case TypePort:
		var start int64
		if v, ok := n.take("start"); ok {
			if start, err = v.AsInt(); err != nil {
				return nil, decodeErr(n.pos.Key("start"), "expected integer, found %s", v.Kind())
			}
		}
		def = Port(start)
	case TypeLogLevel:
		def = LogLevel()
	case TypeLogLevelFilter:
		def = LogLevelFilter()
	case TypeIP:
		def = IP()
	case TypeSocketAddress:
		def = SocketAddress()
	default:
		return nil, decodeErr(n.pos.Key("type"), "unknown type %q", typ)
	}
	if err != nil {
		return nil, err
	}
	return def, n.finish()
}

func decodeInteger(n *node) (Definition, error) {
	lo, hi, err := decodeRange(n)
	if err != nil {
		return nil, err
	}
	d := &Integer{}
	for _, b := range []struct {
		src *float64
		dst **int64
	}{{lo, &d.Min}, {hi, &d.Max}} {
		if b.src == nil {
			continue
		}
		if *b.src != math.Trunc(*b.src) {
			return nil, decodeErr(n.pos.Key("range"), "integer bound %v is not a whole number", *b.src)
		}
		*b.dst = Ptr(int64(*b.src))
	}
	d.Description, _, err = n.str("description")
	return d, err
}

func decodeFloat(n *node) (Definition, error) {
	lo, hi, err := decodeRange(n)
	if err != nil {
		return nil, err
	}
	d := &Float{Min: lo, Max: hi}
	d.Description, _, err = n.str("description")
	return d, err
}

// decodeRange reads "range": a bare number is the maximum, a map may carry
// "min" and "max".
func decodeRange(n *node) (*float64, *float64, error) {
	v, ok := n.take("range")
	if !ok {
		return nil, nil, nil
	}
	pos := n.pos.Key("range")
	if f, ok := v.Number(); ok {
		return nil, &f, nil
	}
	rn, err := newNode(v, pos)
	if err != nil {
		return nil, nil, decodeErr(pos, "expected number or map, found %s", v.Kind())
	}
	var bounds [2]*float64
	for i, key := range []string{"min", "max"} {
		b, ok := rn.take(key)
		if !ok {
			continue
		}
		f, ok := b.Number()
		if !ok {
			return nil, nil, decodeErr(pos.Key(key), "expected number, found %s", b.Kind())
		}
		bounds[i] = &f
	}
	if err := rn.finish(); err != nil {
		return nil, nil, err
	}
	if bounds[0] != nil && bounds[1] != nil && *bounds[0] > *bounds[1] {
		return nil, nil, decodeErr(pos, "min %v is greater than max %v", *bounds[0], *bounds[1])
	}
	return bounds[0], bounds[1], nil
}

// decodeSize reads "size" with the same shape as range, restricted to
// non-negative integers.
func decodeSize(n *node) (*int, *int, error) {
	v, ok := n.take("size")
	if !ok {
		return nil, nil, nil
	}
	pos := n.pos.Key("size")
	toSize := func(v *value.Value, pos value.Position) (*int, error) {
		i, err := v.AsInt()
		if err != nil || i < 0 {
			return nil, decodeErr(pos, "expected non-negative integer, found %s", v.Describe())
		}
		return Ptr(int(i)), nil
	}
	if v.Kind() == value.KindInt {
		hi, err := toSize(v, pos)
		return nil, hi, err
	}
	sn, err := newNode(v, pos)
	if err != nil {
		return nil, nil, decodeErr(pos, "expected integer or map, found %s", v.Kind())
	}
	var bounds [2]*int
	for i, key := range []string{"min", "max"} {
		b, ok := sn.take(key)
		if !ok {
			continue
		}
		if bounds[i], err = toSize(b, pos.Key(key)); err != nil {
			return nil, nil, err
		}
	}
	if err := sn.finish(); err != nil {
		return nil, nil, err
	}
	if bounds[0] != nil && bounds[1] != nil && *bounds[0] > *bounds[1] {
		return nil, nil, decodeErr(pos, "min %d is greater than max %d", *bounds[0], *bounds[1])
	}
	return bounds[0], bounds[1], nil
}

func decodeString(n *node) (Definition, error) {
	d := &String{}
	var err error
	if d.MinLength, d.MaxLength, err = decodeSize(n); err != nil {
		return nil, err
	}
	if d.Pattern, _, err = n.str("pattern"); err != nil {
		return nil, err
	}
	if d.Format, _, err = n.str("format"); err != nil {
		return nil, err
	}
	switch d.Format {
	case "", FormatIP, FormatSocketAddress, FormatDuration, FormatURI, FormatEmail, FormatRegex:
	default:
		return nil, decodeErr(n.pos.Key("format"), "unknown format %q", d.Format)
	}
	d.Description, _, err = n.str("description")
	return d, err
}

func decodeEnum(n *node) (Definition, error) {
	v, ok := n.take("items")
	if !ok {
		return nil, decodeErr(n.pos, "missing field \"items\"")
	}
	pos := n.pos.Key("items")
	list, err := v.AsList()
	if err != nil {
		return nil, decodeErr(pos, "expected list, found %s", v.Kind())
	}
	d := &Enum{Items: make([]string, 0, len(list))}
	for i, item := range list {
		s, err := item.AsString()
		if err != nil {
			return nil, decodeErr(pos.Index(i), "expected string, found %s", item.Kind())
		}
		d.Items = append(d.Items, s)
	}
	d.Description, _, err = n.str("description")
	return d, err
}

func decodeEither(n *node) (Definition, error) {
	v, ok := n.take("definitions")
	if !ok {
		return nil, decodeErr(n.pos, "missing field \"definitions\"")
	}
	pos := n.pos.Key("definitions")
	list, err := v.AsList()
	if err != nil {
		return nil, decodeErr(pos, "expected list, found %s", v.Kind())
	}
	d := &Either{Alternatives: make([]Definition, 0, len(list))}
	for i, item := range list {
		alt, err := decodeType(item, pos.Index(i))
		if err != nil {
			return nil, err
		}
		d.Alternatives = append(d.Alternatives, alt)
	}
	return d, nil
}

func decodeList(n *node) (Definition, error) {
	d := &List{Item: &Any{}}
	var err error
	if d.MinLength, d.MaxLength, err = decodeSize(n); err != nil {
		return nil, err
	}
	if v, ok := n.take("definition"); ok {
		if d.Item, err = decodeType(v, n.pos.Key("definition")); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func decodeStaticMap(n *node) (Definition, error) {
	d := &StaticMap{}
	v, ok := n.take("definitions")
	if !ok {
		return d, nil
	}
	pos := n.pos.Key("definitions")
	m, err := v.AsMap()
	if err != nil {
		return nil, decodeErr(pos, "expected map, found %s", v.Kind())
	}
	for name, fv := range m.All() {
		f, err := decodeField(fv, pos.Key(name))
		if err != nil {
			return nil, err
		}
		f.Name = name
		d.Fields = append(d.Fields, f)
	}
	return d, nil
}

func decodeDynamicMap(n *node) (Definition, error) {
	d := &DynamicMap{}
	var err error
	if d.MinLength, d.MaxLength, err = decodeSize(n); err != nil {
		return nil, err
	}
	if v, ok := n.take("key"); ok {
		if d.Key, err = decodeType(v, n.pos.Key("key")); err != nil {
			return nil, err
		}
	}
	if v, ok := n.take("definition"); ok {
		if d.Value, err = decodeType(v, n.pos.Key("definition")); err != nil {
			return nil, err
		}
	}
	return d, nil
}

var fileTypeNames = map[string]FileType{
	"file": FileTypeFile, "f": FileTypeFile,
	"directory": FileTypeDirectory, "d": FileTypeDirectory,
	"symlink": FileTypeSymlink,
}

var accessNames = map[string]Access{
	"read": AccessRead, "r": AccessRead,
	"write": AccessWrite, "w": AccessWrite,
	"read_write": AccessRead | AccessWrite, "rw": AccessRead | AccessWrite, "wr": AccessRead | AccessWrite,
}

func decodePath(n *node) (Definition, error) {
	d := &Path{}
	ft, ok, err := n.str("file_type")
	if err != nil {
		return nil, err
	}
	if ok {
		t, known := fileTypeNames[strings.ToLower(ft)]
		if !known {
			return nil, decodeErr(n.pos.Key("file_type"), "unknown file type %q", ft)
		}
		d.FileType = t
	}

	if d.MustExist, _, err = n.boolean("error_if_not_found"); err != nil {
		return nil, err
	}

	abs, ok, err := n.boolean("absolute")
	if err != nil {
		return nil, err
	}
	if ok {
		d.Absolute = Ptr(abs)
	}

	if v, ok := n.take("access"); ok {
		pos := n.pos.Key("access")
		var names []string
		if s, err := v.AsString(); err == nil {
			names = []string{s}
		} else if list, err := v.AsList(); err == nil {
			for i, item := range list {
				s, err := item.AsString()
				if err != nil {
					return nil, decodeErr(pos.Index(i), "expected string, found %s", item.Kind())
				}
				names = append(names, s)
			}
		} else {
			return nil, decodeErr(pos, "expected string or list, found %s", v.Kind())
		}
		for _, name := range names {
			a, known := accessNames[strings.ToLower(name)]
			if !known {
				return nil, decodeErr(pos, "unknown access %q", name)
			}
			d.Access |= a
		}
	}
	return d, nil
}
