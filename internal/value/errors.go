package value

import (
	"errors"
	"fmt"
)

// ErrTypeMismatch is matched by every TypeMismatchError.
var ErrTypeMismatch = errors.New("type mismatch")

// TypeMismatchError is returned when an accessor is asked for a variant the
// node does not hold.
type TypeMismatchError struct {
	Requested Kind
	Actual    Kind
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: requested %s, found %s", e.Requested, e.Actual)
}

// Is reports whether target is ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func mismatch(requested, actual Kind) error {
	return &TypeMismatchError{Requested: requested, Actual: actual}
}
