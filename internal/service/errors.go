package service

import (
	"context"
	"errors"
	"net"

	"github.com/daleapp/dale-backend/internal/apperr"
)

// classify maps low-level I/O failures to TransientError while leaving
// the structured marketplace kinds untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if apperr.IsValidation(err) || apperr.IsAuth(err) || apperr.IsNotFound(err) ||
		apperr.IsState(err) || apperr.IsConflict(err) || apperr.IsTransient(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.TransientError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.TransientError{Err: err}
	}
	return err
}

// withRetry runs fn, retrying exactly once when the failure classifies as
// transient. Validation and state failures are never retried.
func withRetry(ctx context.Context, fn func() error) error {
	err := classify(fn())
	if err == nil || !apperr.IsTransient(err) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return classify(fn())
}
