package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/plugconf/internal/value"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ErrorKind categorizes a validation failure.
type ErrorKind uint8

// Error kinds.
const (
	// KindMismatch means the value has the wrong variant.
	KindMismatch ErrorKind = iota
	// KindConstraint means the variant is right but a constraint failed.
	KindConstraint
	// KindNotSet means a required key is absent.
	KindNotSet
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindMismatch:
		return "mismatch"
	case KindConstraint:
		return "constraint"
	case KindNotSet:
		return "not set"
	default:
		return "unknown"
	}
}

// ValidationError describes the first failure found while validating a
// tree.
type ValidationError struct {
	// Position locates the offending node, rendered like diff positions.
	Position value.Position

	Kind ErrorKind

	// Expected describes the definition that failed.
	Expected string

	// Found describes the offending value. It is "not set" for KindNotSet.
	Found string

	// Reason optionally narrows down which constraint failed.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Kind == KindNotSet {
		return fmt.Sprintf("%s is not set (expected %s)", e.Position, e.Expected)
	}

	var b strings.Builder
	if !e.Position.IsRoot() {
		b.WriteString(e.Position.String())
		b.WriteString(": ")
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, "%s (expected %s, found %s)", e.Reason, e.Expected, e.Found)
	} else {
		fmt.Fprintf(&b, "expected %s, found %s", e.Expected, e.Found)
	}
	return b.String()
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
