// Package validate checks value trees against schema definitions.
//
// Validation walks the subject depth-first and stops at the first failure.
// Static map defaults are written into the subject as they are reached, so a
// failed run may leave earlier defaults in place.
package validate

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/schema"
	"github.com/dshills/plugconf/internal/value"
	"github.com/rivo/uniseg"
)

// Option configures a Validator.
type Option func(*Validator)

// WithCoercion enables lenient conversions: boolean words and numeric
// strings are converted to the expected variant, and integers are accepted
// as floats. Converted values are written back into the subject.
func WithCoercion() Option {
	return func(v *Validator) {
		v.coerce = true
	}
}

// WithObserver attaches an observer for default, coercion and failure
// events.
func WithObserver(o observe.Observer) Option {
	return func(v *Validator) {
		v.observer = observe.OrNop(o)
	}
}

// Validator validates value trees. It is safe for concurrent use on
// distinct subjects.
type Validator struct {
	coerce   bool
	observer observe.Observer

	// Pattern cache
	patternCache sync.Map // map[string]*regexp.Regexp
}

// New creates a validator.
func New(opts ...Option) *Validator {
	v := &Validator{observer: observe.Nop{}}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate validates subject against def with a one-off validator.
func Validate(subject *value.Value, def schema.Definition, pos value.Position, opts ...Option) error {
	return New(opts...).Validate(subject, def, pos)
}

// Validate checks subject against def. pos is the position of subject
// inside its enclosing tree; pass nil for the root. Defaults are injected
// into subject in place. The returned error, if any, is a *ValidationError.
func (v *Validator) Validate(subject *value.Value, def schema.Definition, pos value.Position) error {
	if subject == nil {
		return &ValidationError{Position: pos, Kind: KindMismatch, Expected: describe(def), Found: "nothing"}
	}
	if err := v.check(subject, def, pos); err != nil {
		v.observer.Observe(observe.Event{
			Op:       observe.OpValidateFail,
			Position: err.Position,
			Message:  err.Error(),
		})
		return err
	}
	return nil
}

func (v *Validator) check(subject *value.Value, def schema.Definition, pos value.Position) *ValidationError {
	switch d := def.(type) {
	case nil, *schema.Any:
		return nil
	case *schema.Boolean:
		return v.checkBoolean(subject, d, pos)
	case *schema.Integer:
		return v.checkInteger(subject, d, pos)
	case *schema.Float:
		return v.checkFloat(subject, d, pos)
	case *schema.String:
		return v.checkString(subject, d, pos)
	case *schema.Enum:
		return v.checkEnum(subject, d, pos)
	case *schema.Either:
		return v.checkEither(subject, d, pos)
	case *schema.List:
		return v.checkList(subject, d, pos)
	case *schema.StaticMap:
		return v.checkStaticMap(subject, d, pos)
	case *schema.DynamicMap:
		return v.checkDynamicMap(subject, d, pos)
	case *schema.Path:
		return v.checkPath(subject, d, pos)
	default:
		panic(fmt.Sprintf("validate: unhandled definition %T", def))
	}
}

func mismatch(subject *value.Value, def schema.Definition, pos value.Position) *ValidationError {
	return &ValidationError{
		Position: pos,
		Kind:     KindMismatch,
		Expected: describe(def),
		Found:    subject.Describe(),
	}
}

func violation(subject *value.Value, def schema.Definition, pos value.Position, reason string) *ValidationError {
	return &ValidationError{
		Position: pos,
		Kind:     KindConstraint,
		Expected: describe(def),
		Found:    subject.Describe(),
		Reason:   reason,
	}
}

func describe(def schema.Definition) string {
	if def == nil {
		return "anything"
	}
	return def.String()
}

func (v *Validator) checkBoolean(subject *value.Value, d *schema.Boolean, pos value.Position) *ValidationError {
	if v.coerce {
		v.coerceBoolean(subject, pos)
	}
	if subject.Kind() != value.KindBool {
		return mismatch(subject, d, pos)
	}
	return nil
}

func (v *Validator) checkInteger(subject *value.Value, d *schema.Integer, pos value.Position) *ValidationError {
	if v.coerce {
		v.coerceInteger(subject, pos)
	}
	i, err := subject.AsInt()
	if err != nil {
		return mismatch(subject, d, pos)
	}
	if d.Min != nil && i < *d.Min {
		return violation(subject, d, pos, fmt.Sprintf("value is less than %d", *d.Min))
	}
	if d.Max != nil && i > *d.Max {
		return violation(subject, d, pos, fmt.Sprintf("value is greater than %d", *d.Max))
	}
	return nil
}

func (v *Validator) checkFloat(subject *value.Value, d *schema.Float, pos value.Position) *ValidationError {
	if v.coerce {
		v.coerceFloat(subject, pos)
	}
	f, err := subject.AsFloat()
	if err != nil {
		return mismatch(subject, d, pos)
	}
	if d.Min != nil && f < *d.Min {
		return violation(subject, d, pos, fmt.Sprintf("value is less than %s", value.FormatFloat(*d.Min)))
	}
	if d.Max != nil && f > *d.Max {
		return violation(subject, d, pos, fmt.Sprintf("value is greater than %s", value.FormatFloat(*d.Max)))
	}
	return nil
}

func (v *Validator) checkString(subject *value.Value, d *schema.String, pos value.Position) *ValidationError {
	s, err := subject.AsString()
	if err != nil {
		return mismatch(subject, d, pos)
	}
	if d.MinLength != nil || d.MaxLength != nil {
		n := uniseg.GraphemeClusterCount(s)
		if d.MinLength != nil && n < *d.MinLength {
			return violation(subject, d, pos, fmt.Sprintf("length %d is less than %d", n, *d.MinLength))
		}
		if d.MaxLength != nil && n > *d.MaxLength {
			return violation(subject, d, pos, fmt.Sprintf("length %d is greater than %d", n, *d.MaxLength))
		}
	}
	if d.Pattern != "" {
		re, err := v.pattern(d.Pattern)
		if err != nil {
			return violation(subject, d, pos, fmt.Sprintf("invalid pattern: %v", err))
		}
		if !re.MatchString(s) {
			return violation(subject, d, pos, "value does not match pattern")
		}
	}
	if d.Format != "" {
		if reason := checkFormat(s, d.Format); reason != "" {
			return violation(subject, d, pos, reason)
		}
	}
	return nil
}

func (v *Validator) checkEnum(subject *value.Value, d *schema.Enum, pos value.Position) *ValidationError {
	s, err := subject.AsString()
	if err != nil {
		return mismatch(subject, d, pos)
	}
	for _, item := range d.Items {
		if item == s {
			return nil
		}
	}
	return violation(subject, d, pos, "value is not one of the allowed values")
}

// checkEither validates each alternative against a copy of subject and
// folds the copy of the first one that passes back into subject, so defaults
// injected by the winning branch survive and earlier handles stay attached.
func (v *Validator) checkEither(subject *value.Value, d *schema.Either, pos value.Position) *ValidationError {
	for i, alt := range d.Alternatives {
		candidate := subject.Clone()
		err := v.check(candidate, alt, pos)
		if err == nil {
			subject.Update(candidate)
			return nil
		}
		v.observer.Observe(observe.Event{
			Op:       observe.OpEitherAttempt,
			Position: pos,
			Message:  fmt.Sprintf("alternative %d rejected: %s", i, err),
		})
	}
	return mismatch(subject, d, pos)
}

func (v *Validator) checkList(subject *value.Value, d *schema.List, pos value.Position) *ValidationError {
	items, err := subject.AsList()
	if err != nil {
		return mismatch(subject, d, pos)
	}
	if reason := checkSize(len(items), d.MinLength, d.MaxLength); reason != "" {
		return violation(subject, d, pos, reason)
	}
	for i, item := range items {
		if err := v.check(item, d.Item, pos.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkStaticMap(subject *value.Value, d *schema.StaticMap, pos value.Position) *ValidationError {
	m, err := subject.AsMap()
	if err != nil {
		return mismatch(subject, d, pos)
	}
	for _, f := range d.Fields {
		fieldPos := pos.Key(f.Name)
		child, ok := m.Get(f.Name)
		switch {
		case ok:
		case f.Default != nil:
			child = f.Default.Clone()
			m.Set(f.Name, child)
			v.observer.Observe(observe.Event{
				Op:       observe.OpDefault,
				Position: fieldPos,
				Message:  "using default value",
				New:      child,
			})
		case f.Optional:
			continue
		default:
			return &ValidationError{
				Position: fieldPos,
				Kind:     KindNotSet,
				Expected: describe(f.Definition),
				Found:    "not set",
			}
		}
		if err := v.check(child, f.Definition, fieldPos); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkDynamicMap(subject *value.Value, d *schema.DynamicMap, pos value.Position) *ValidationError {
	m, err := subject.AsMap()
	if err != nil {
		return mismatch(subject, d, pos)
	}
	if reason := checkSize(m.Len(), d.MinLength, d.MaxLength); reason != "" {
		return violation(subject, d, pos, reason)
	}
	for k, child := range m.All() {
		childPos := pos.Key(k)
		if d.Key != nil {
			key := value.String(k)
			if err := v.check(key, d.Key, childPos); err != nil {
				err.Reason = joinReason("invalid key", err.Reason)
				return err
			}
		}
		if err := v.check(child, d.Value, childPos); err != nil {
			return err
		}
	}
	return nil
}

func joinReason(prefix, reason string) string {
	if reason == "" {
		return prefix
	}
	return prefix + ": " + reason
}

func checkSize(n int, min, max *int) string {
	if min != nil && n < *min {
		return fmt.Sprintf("length %d is less than %d", n, *min)
	}
	if max != nil && n > *max {
		return fmt.Sprintf("length %d is greater than %d", n, *max)
	}
	return ""
}

// pattern compiles and caches a regular expression.
func (v *Validator) pattern(p string) (*regexp.Regexp, error) {
	if cached, ok := v.patternCache.Load(p); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}

	v.patternCache.Store(p, re)
	return re, nil
}
