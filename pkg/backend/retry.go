package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/vector"
)

// DefaultRetryBackoff is the pause before the single retry of a transient
// failure.
const DefaultRetryBackoff = 200 * time.Millisecond

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as a retryable network or server failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying: errors marked with
// Transient, timeouts and network errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, vector.ErrInvalidArgument) || errors.Is(err, context.Canceled) {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Unavailable wraps err as vector.ErrBackendUnavailable unless it already
// carries an invalid argument kind.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, vector.ErrInvalidArgument) || errors.Is(err, vector.ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", vector.ErrBackendUnavailable, err)
}

// Retry runs op and, if it fails transiently, runs it once more after
// backoff. The final error is classified with Unavailable.
func Retry(ctx context.Context, logger *zap.Logger, backoff time.Duration, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil || !IsTransient(err) {
		return Unavailable(err)
	}

	logger.Warn("transient backend failure, retrying",
		zap.Duration("backoff", backoff),
		zap.Error(err),
	)

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Unavailable(ctx.Err())
	case <-timer.C:
	}

	return Unavailable(op(ctx))
}
