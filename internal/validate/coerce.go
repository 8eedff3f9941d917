package validate

import (
	"strconv"
	"strings"

	"github.com/dshills/plugconf/internal/observe"
	"github.com/dshills/plugconf/internal/value"
)

func (v *Validator) replace(subject, with *value.Value, pos value.Position) {
	v.observer.Observe(observe.Event{
		Op:       observe.OpCoerce,
		Position: pos,
		Message:  "converted value",
		Old:      subject.Clone(),
		New:      with,
	})
	subject.Update(with)
}

func (v *Validator) coerceBoolean(subject *value.Value, pos value.Position) {
	s, err := subject.AsString()
	if err != nil {
		return
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "on", "1":
		v.replace(subject, value.Bool(true), pos)
	case "no", "n", "false", "off", "0":
		v.replace(subject, value.Bool(false), pos)
	}
}

func (v *Validator) coerceInteger(subject *value.Value, pos value.Position) {
	s, err := subject.AsString()
	if err != nil {
		return
	}
	if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		v.replace(subject, value.Int(i), pos)
	}
}

func (v *Validator) coerceFloat(subject *value.Value, pos value.Position) {
	switch subject.Kind() {
	case value.KindInt:
		i, _ := subject.AsInt()
		v.replace(subject, value.Float(float64(i)), pos)
	case value.KindString:
		s, _ := subject.AsString()
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			v.replace(subject, value.Float(f), pos)
		}
	}
}
