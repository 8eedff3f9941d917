// Package schema describes the expected shape of value trees.
//
// Definitions are plain data walked by the validate package. The set of
// definition types is closed: every type implements the unexported marker
// method, so switches over Definition in this module list all of them.
package schema

import (
	"fmt"
	"strings"

	"github.com/dshills/plugconf/internal/value"
)

// Kind identifies a definition type.
type Kind uint8

// Definition kinds.
const (
	KindAny Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindEnum
	KindEither
	KindList
	KindStaticMap
	KindDynamicMap
	KindPath
)

// String returns the discriminator used in the external notation.
func (k Kind) String() string {
	switch k {
	case KindAny:
		return TypeAny
	case KindBoolean:
		return TypeBoolean
	case KindInteger:
		return TypeInteger
	case KindFloat:
		return TypeFloat
	case KindString:
		return TypeString
	case KindEnum:
		return TypeEnum
	case KindEither:
		return TypeEither
	case KindList:
		return TypeList
	case KindStaticMap:
		return TypeStaticMap
	case KindDynamicMap:
		return TypeDynamicMap
	case KindPath:
		return TypePath
	default:
		return "unknown"
	}
}

// Definition is a node of a schema tree. String returns the human readable
// description used as the "expected" part of validation errors.
type Definition interface {
	Kind() Kind
	String() string
	definition()
}

// Any accepts every value.
type Any struct{}

// Boolean accepts booleans.
type Boolean struct{}

// Integer accepts integers within the optional inclusive bounds.
type Integer struct {
	Min *int64
	Max *int64

	// Description replaces the generated description when set.
	Description string
}

// Float accepts floats within the optional inclusive bounds.
type Float struct {
	Min *float64
	Max *float64

	Description string
}

// String accepts strings. Lengths count grapheme clusters.
type String struct {
	MinLength *int
	MaxLength *int
	Pattern   string
	Format    string

	Description string
}

// Enum accepts strings equal to one of Items.
type Enum struct {
	Items []string

	Description string
}

// Either accepts a value matching any of Alternatives. Alternatives are
// tried in order and the first match wins.
type Either struct {
	Alternatives []Definition
}

// List accepts lists whose items all match Item.
type List struct {
	Item      Definition
	MinLength *int
	MaxLength *int
}

// Field is one declared key of a StaticMap.
type Field struct {
	Name       string
	Definition Definition

	// Default is injected when the key is absent.
	Default *value.Value

	// Optional fields without a default may be absent.
	Optional bool
}

// Required reports whether validation fails when the key is absent.
func (f Field) Required() bool {
	return f.Default == nil && !f.Optional
}

// String describes the field's definition and default.
func (f Field) String() string {
	desc := describe(f.Definition)
	if f.Default == nil {
		return desc
	}
	switch f.Definition.(type) {
	case *List, *StaticMap, *DynamicMap, *Either:
		return desc
	}
	return fmt.Sprintf("%s with default value `%s`", desc, f.Default)
}

// StaticMap accepts maps with a fixed set of keys, checked in declaration
// order. Undeclared keys are left alone.
type StaticMap struct {
	Fields []Field
}

// Field returns the declared field called name.
func (s *StaticMap) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the declared field names in order.
func (s *StaticMap) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// DynamicMap accepts maps with arbitrary keys. Each key is checked against
// Key and each value against Value; nil means String and Any respectively.
type DynamicMap struct {
	Key       Definition
	Value     Definition
	MinLength *int
	MaxLength *int
}

// FileType restricts what a Path may point at.
type FileType uint8

// File types.
const (
	FileTypeAny FileType = iota
	FileTypeFile
	FileTypeDirectory
	FileTypeSymlink
)

// String returns the notation name of the file type.
func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDirectory:
		return "directory"
	case FileTypeSymlink:
		return "symlink"
	default:
		return "path"
	}
}

// Access is a set of permissions a Path must grant.
type Access uint8

// Access flags.
const (
	AccessRead Access = 1 << iota
	AccessWrite
)

// Path accepts strings naming filesystem paths.
type Path struct {
	FileType FileType
	Access   Access

	// Absolute requires an absolute (true) or relative (false) path.
	Absolute *bool

	// MustExist fails validation when the path does not exist.
	MustExist bool
}

func (*Any) definition()        {}
func (*Boolean) definition()    {}
func (*Integer) definition()    {}
func (*Float) definition()      {}
func (*String) definition()     {}
func (*Enum) definition()       {}
func (*Either) definition()     {}
func (*List) definition()       {}
func (*StaticMap) definition()  {}
func (*DynamicMap) definition() {}
func (*Path) definition()       {}

func (*Any) Kind() Kind        { return KindAny }
func (*Boolean) Kind() Kind    { return KindBoolean }
func (*Integer) Kind() Kind    { return KindInteger }
func (*Float) Kind() Kind      { return KindFloat }
func (*String) Kind() Kind     { return KindString }
func (*Enum) Kind() Kind       { return KindEnum }
func (*Either) Kind() Kind     { return KindEither }
func (*List) Kind() Kind       { return KindList }
func (*StaticMap) Kind() Kind  { return KindStaticMap }
func (*DynamicMap) Kind() Kind { return KindDynamicMap }
func (*Path) Kind() Kind       { return KindPath }

func (*Any) String() string { return "anything" }

func (*Boolean) String() string { return "boolean" }

func (d *Integer) String() string {
	if d.Description != "" {
		return d.Description
	}
	return "integer" + describeBounds(d.Min, d.Max)
}

func (d *Float) String() string {
	if d.Description != "" {
		return d.Description
	}
	var lo, hi *value.Value
	if d.Min != nil {
		lo = value.Float(*d.Min)
	}
	if d.Max != nil {
		hi = value.Float(*d.Max)
	}
	return "float" + describeRange(lo, hi)
}

func (d *String) String() string {
	if d.Description != "" {
		return d.Description
	}
	var b strings.Builder
	b.WriteString("string")
	if d.MinLength != nil || d.MaxLength != nil {
		b.WriteString(" with length")
		b.WriteString(describeSize(d.MinLength, d.MaxLength))
	}
	if d.Pattern != "" {
		fmt.Fprintf(&b, " matching regular expression `%s`", d.Pattern)
	}
	if d.Format != "" {
		fmt.Fprintf(&b, " in %s format", d.Format)
	}
	return b.String()
}

func (d *Enum) String() string {
	if d.Description != "" {
		return d.Description
	}
	items := make([]string, len(d.Items))
	for i, item := range d.Items {
		items[i] = value.String(item).String()
	}
	return fmt.Sprintf("enum with possible values [%s]", strings.Join(items, ", "))
}

func (d *Either) String() string {
	if len(d.Alternatives) == 0 {
		return "a value that can never match"
	}
	alts := make([]string, len(d.Alternatives))
	for i, alt := range d.Alternatives {
		alts[i] = describe(alt)
	}
	return "a value that must be " + strings.Join(alts, " or ")
}

func (d *List) String() string {
	size := ""
	if d.MinLength != nil || d.MaxLength != nil {
		size = " with length" + describeSize(d.MinLength, d.MaxLength)
	}
	return fmt.Sprintf("list%s where each item should be %s", size, describe(d.Item))
}

func (d *StaticMap) String() string {
	if len(d.Fields) == 0 {
		return "static map"
	}
	parts := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		parts[i] = fmt.Sprintf("key `%s` which should be %s", f.Name, f)
	}
	return "static map with " + strings.Join(parts, ", ")
}

func (d *DynamicMap) String() string {
	var b strings.Builder
	b.WriteString("dynamic map")
	if d.MinLength != nil || d.MaxLength != nil {
		b.WriteString(" with length")
		b.WriteString(describeSize(d.MinLength, d.MaxLength))
	}
	if d.Key != nil {
		if _, plain := d.Key.(*String); !plain || d.Key.String() != "string" {
			fmt.Fprintf(&b, " which each key should be %s and", d.Key)
		}
	}
	fmt.Fprintf(&b, " which each value should be %s", describe(d.Value))
	return b.String()
}

func (d *Path) String() string {
	var b strings.Builder
	b.WriteString(d.FileType.String())
	switch d.Access {
	case AccessRead:
		b.WriteString(" with read access")
	case AccessWrite:
		b.WriteString(" with write access")
	case AccessRead | AccessWrite:
		b.WriteString(" with read and write access")
	}
	if d.Absolute != nil {
		if *d.Absolute {
			b.WriteString(" that should be absolute path")
		} else {
			b.WriteString(" that should be relative path")
		}
	}
	if d.MustExist {
		if d.Absolute != nil {
			b.WriteString(" and should exist")
		} else {
			b.WriteString(" that should exist")
		}
	}
	return b.String()
}

// describe tolerates nil definitions, which mean Any.
func describe(d Definition) string {
	if d == nil {
		return "anything"
	}
	return d.String()
}

func describeBounds(min, max *int64) string {
	var lo, hi *value.Value
	if min != nil {
		lo = value.Int(*min)
	}
	if max != nil {
		hi = value.Int(*max)
	}
	return describeRange(lo, hi)
}

func describeRange(lo, hi *value.Value) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf(" at least `%s` and at most `%s`", lo, hi)
	case lo != nil:
		return fmt.Sprintf(" at least `%s`", lo)
	case hi != nil:
		return fmt.Sprintf(" at most `%s`", hi)
	}
	return ""
}

func describeSize(min, max *int) string {
	var lo, hi *value.Value
	if min != nil {
		lo = value.Int(int64(*min))
	}
	if max != nil {
		hi = value.Int(int64(*max))
	}
	return describeRange(lo, hi)
}
