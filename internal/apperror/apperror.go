// Package apperror defines the typed errors that cross layer boundaries.
//
// Repositories and services return *AppError values wrapping one of the
// sentinels below; handlers map the sentinel to an HTTP status with
// errors.Is. Anything that is not an *AppError is treated as internal.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Retry   bool   // The whole operation may succeed if the client repeats it
	cause   error  // storage error behind a retryable conflict, for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Cause returns the underlying storage error of a retryable conflict, or nil.
func (e *AppError) Cause() error {
	return e.cause
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Retryable reports a transaction that the storage engine aborted because of
// concurrent writers (busy database, serialization failure, deadlock).
// Nothing from the aborted transaction was committed, so the client should
// repeat the entire operation rather than re-apply any part of it.
func Retryable(operation string, cause error) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s collided with a concurrent update, retry the request", operation),
		Retry:   true,
		cause:   cause,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the operation needs an acting identity and none was
// supplied. It is returned before any mutation happens.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// IsRetryable reports whether err is a retryable storage conflict.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Retry
}
