package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed requests: a k outside of
	// the accepted range, an empty query embedding or an unknown field.
	// Requests failing with it must not be retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidDimension is returned when a query vector's length differs
	// from the indexed dimension. It wraps ErrInvalidArgument.
	ErrInvalidDimension = fmt.Errorf("%w: invalid dimension", ErrInvalidArgument)

	// ErrBackendUnavailable is returned when the index or metadata is not
	// loaded, or a remote vector store could not be reached in time.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// DimensionError returns an ErrInvalidDimension describing the mismatch.
func DimensionError(want, got int) error {
	return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, want, got)
}
