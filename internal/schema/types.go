package schema

import "github.com/dshills/plugconf/internal/value"

// Discriminators of the external notation.
const (
	TypeAny            = "any"
	TypeBoolean        = "boolean"
	TypeInteger        = "integer"
	TypeFloat          = "float"
	TypeNumber         = "number"
	TypeString         = "string"
	TypeEnum           = "enum"
	TypeEither         = "either"
	TypeList           = "list"
	TypeStaticMap      = "static_map"
	TypeDynamicMap     = "dynamic_map"
	TypePath           = "path"
	TypePort           = "port"
	TypeLogLevel       = "log_level"
	TypeLogLevelFilter = "log_level_filter"
	TypeIP             = "ip"
	TypeSocketAddress  = "socket_address"
)

// String formats understood by the validator.
const (
	FormatIP            = "ip"
	FormatSocketAddress = "socket_address"
	FormatDuration      = "duration"
	FormatURI           = "uri"
	FormatEmail         = "email"
	FormatRegex         = "regex"
)

// Ptr returns a pointer to v. It keeps bound literals short.
func Ptr[T any](v T) *T { return &v }

// NewAny returns an Any definition.
func NewAny() *Any { return &Any{} }

// NewBoolean returns a Boolean definition.
func NewBoolean() *Boolean { return &Boolean{} }

// NewInteger returns an unbounded Integer definition.
func NewInteger() *Integer { return &Integer{} }

// IntRange returns an Integer definition bounded by min and max inclusive.
func IntRange(min, max int64) *Integer {
	return &Integer{Min: &min, Max: &max}
}

// NewFloat returns an unbounded Float definition.
func NewFloat() *Float { return &Float{} }

// FloatRange returns a Float definition bounded by min and max inclusive.
func FloatRange(min, max float64) *Float {
	return &Float{Min: &min, Max: &max}
}

// NewString returns an unconstrained String definition.
func NewString() *String { return &String{} }

// NewEnum returns an Enum definition.
func NewEnum(items ...string) *Enum { return &Enum{Items: items} }

// OneOf returns an Either definition.
func OneOf(alternatives ...Definition) *Either {
	return &Either{Alternatives: alternatives}
}

// ListOf returns a List definition.
func ListOf(item Definition) *List { return &List{Item: item} }

// MapOf returns a DynamicMap definition with string keys.
func MapOf(v Definition) *DynamicMap { return &DynamicMap{Value: v} }

// Builder provides a fluent API for constructing static maps.
type Builder struct {
	m *StaticMap
}

// NewBuilder creates a new static map builder.
func NewBuilder() *Builder {
	return &Builder{m: &StaticMap{}}
}

// Build returns the constructed definition.
func (b *Builder) Build() *StaticMap {
	return b.m
}

// Required declares a key that must be present.
func (b *Builder) Required(name string, def Definition) *Builder {
	b.m.Fields = append(b.m.Fields, Field{Name: name, Definition: def})
	return b
}

// Default declares a key that is filled with fallback when absent.
func (b *Builder) Default(name string, def Definition, fallback *value.Value) *Builder {
	b.m.Fields = append(b.m.Fields, Field{Name: name, Definition: def, Default: fallback})
	return b
}

// Optional declares a key that may be absent.
func (b *Builder) Optional(name string, def Definition) *Builder {
	b.m.Fields = append(b.m.Fields, Field{Name: name, Definition: def, Optional: true})
	return b
}
