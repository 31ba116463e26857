package catalog

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/sleeves/pkg/vector"
)

var (
	// ErrDuplicateID is returned when a metadata collection repeats an identifier.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrUnknownField is returned for attribute names a Record does not carry.
	ErrUnknownField = fmt.Errorf("%w: unknown field", vector.ErrInvalidArgument)
)

// UnknownFieldError wraps ErrUnknownField with the offending name.
func UnknownFieldError(f Field) error {
	return fmt.Errorf("%w %q", ErrUnknownField, string(f))
}
