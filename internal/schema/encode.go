package schema

import "github.com/dshills/plugconf/internal/value"

// Encode renders def in the external notation read by Decode. Presets are
// written in their expanded form.
func Encode(def Definition) *value.Value {
	m := value.NewMap()
	if def == nil {
		def = &Any{}
	}
	m.Set("type", value.String(def.Kind().String()))

	switch d := def.(type) {
	case *Any, *Boolean:
	case *Integer:
		var lo, hi *value.Value
		if d.Min != nil {
			lo = value.Int(*d.Min)
		}
		if d.Max != nil {
			hi = value.Int(*d.Max)
		}
		setBounds(m, "range", lo, hi)
		setDescription(m, d.Description)
	case *Float:
		var lo, hi *value.Value
		if d.Min != nil {
			lo = value.Float(*d.Min)
		}
		if d.Max != nil {
			hi = value.Float(*d.Max)
		}
		setBounds(m, "range", lo, hi)
		setDescription(m, d.Description)
	case *String:
		setSize(m, d.MinLength, d.MaxLength)
		if d.Pattern != "" {
			m.Set("pattern", value.String(d.Pattern))
		}
		if d.Format != "" {
			m.Set("format", value.String(d.Format))
		}
		setDescription(m, d.Description)
	case *Enum:
		items := make([]*value.Value, len(d.Items))
		for i, item := range d.Items {
			items[i] = value.String(item)
		}
		m.Set("items", value.ListOf(items...))
		setDescription(m, d.Description)
	case *Either:
		alts := make([]*value.Value, len(d.Alternatives))
		for i, alt := range d.Alternatives {
			alts[i] = Encode(alt)
		}
		m.Set("definitions", value.ListOf(alts...))
	case *List:
		setSize(m, d.MinLength, d.MaxLength)
		m.Set("definition", Encode(d.Item))
	case *StaticMap:
		fields := value.NewMap()
		for _, f := range d.Fields {
			fields.Set(f.Name, EncodeField(f))
		}
		m.Set("definitions", value.FromMap(fields))
	case *DynamicMap:
		setSize(m, d.MinLength, d.MaxLength)
		if d.Key != nil {
			m.Set("key", Encode(d.Key))
		}
		m.Set("definition", Encode(d.Value))
	case *Path:
		if d.FileType != FileTypeAny {
			m.Set("file_type", value.String(d.FileType.String()))
		}
		if d.MustExist {
			m.Set("error_if_not_found", value.Bool(true))
		}
		if d.Absolute != nil {
			m.Set("absolute", value.Bool(*d.Absolute))
		}
		var access []*value.Value
		if d.Access&AccessRead != 0 {
			access = append(access, value.String("read"))
		}
		if d.Access&AccessWrite != 0 {
			access = append(access, value.String("write"))
		}
		if len(access) > 0 {
			m.Set("access", value.ListOf(access...))
		}
	}
	return value.FromMap(m)
}

// EncodeField renders a field node.
func EncodeField(f Field) *value.Value {
	m := value.NewMap()
	m.Set("definition", Encode(f.Definition))
	if f.Default != nil {
		m.Set("default", f.Default.Clone())
	}
	if f.Optional {
		m.Set("optional", value.Bool(true))
	}
	return value.FromMap(m)
}

func setBounds(m *value.Map, key string, lo, hi *value.Value) {
	switch {
	case lo == nil && hi == nil:
		return
	case lo == nil:
		m.Set(key, hi)
	default:
		b := value.NewMap()
		b.Set("min", lo)
		if hi != nil {
			b.Set("max", hi)
		}
		m.Set(key, value.FromMap(b))
	}
}

func setSize(m *value.Map, min, max *int) {
	var lo, hi *value.Value
	if min != nil {
		lo = value.Int(int64(*min))
	}
	if max != nil {
		hi = value.Int(int64(*max))
	}
	setBounds(m, "size", lo, hi)
}

func setDescription(m *value.Map, desc string) {
	if desc != "" {
		m.Set("description", value.String(desc))
	}
}
