package schema

import (
	"errors"
	"fmt"

	"github.com/dshills/plugconf/internal/value"
)

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("invalid definition")

// DecodeError reports a malformed definition document.
type DecodeError struct {
	// Position locates the offending node inside the definition document.
	Position value.Position
	Message  string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Position.IsRoot() {
		return "invalid definition: " + e.Message
	}
	return fmt.Sprintf("invalid definition at %s: %s", e.Position, e.Message)
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErr(pos value.Position, format string, args ...any) error {
	return &DecodeError{Position: pos, Message: fmt.Sprintf(format, args...)}
}
