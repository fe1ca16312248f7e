// Package apperr defines the structured error kinds surfaced by the
// marketplace core. Handlers translate kinds into HTTP statuses; the core
// itself never formats user-facing copy.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input, caught before any persistence
// call. Field names the offending input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field != "" && e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	if e.Msg != "" {
		return e.Msg
	}
	return "validation error"
}

// AuthError reports a missing or invalid caller identity, or a caller
// without the capability required for the operation.
type AuthError struct {
	Msg string
	Err error
}

func (e AuthError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "unauthorized"
}

func (e AuthError) Unwrap() error { return e.Err }

// NotFoundError reports an absent trip, booking, or profile.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

// StateError reports an operation invalid for the entity's current status,
// e.g. booking a cancelled trip.
type StateError struct {
	Resource string
	Current  string
	Msg      string
}

func (e StateError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("%s in state %q does not allow this operation", e.Resource, e.Current)
}

// ConflictError reports a lost concurrent race, e.g. insufficient seats
// at commit time.
type ConflictError struct {
	Resource string
	Msg      string
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

// TransientError reports a retryable I/O failure against an external
// service that persisted across retries.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure: %v", e.Err)
	}
	return "transient failure"
}

func (e TransientError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsAuth(err error) bool {
	var target AuthError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsState(err error) bool {
	var target StateError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsTransient(err error) bool {
	var target TransientError
	return errors.As(err, &target)
}
