// Package apperror defines the domain errors shared by every layer.
//
// Repositories and services return these; only the transports (HTTP handlers,
// MCP tools) decide how a sentinel is presented to the caller.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrUnavailable   = errors.New("store unavailable")
)

type AppError struct {
	Err     error  // sentinel
	Message string // human-readable, safe to show to the user
	Field   string // optional: input field that caused the error
	Limit   int    // optional: quota limit for ErrQuotaExceeded
	cause   error  // optional: underlying driver error, never shown to users
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.cause}
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

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned for bad credentials. The message never says which
// half of the credentials was wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// QuotaExceeded reports that a user already owns limit snippets.
// Callers must not retry automatically.
func QuotaExceeded(limit int) *AppError {
	return &AppError{
		Err:     ErrQuotaExceeded,
		Message: fmt.Sprintf("You have reached the maximum limit of %d snippets.", limit),
		Limit:   limit,
	}
}

// Unavailable wraps a transport or lock failure of the backing store.
func Unavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: "the snippet store is temporarily unavailable, please try again",
		Field:   op,
		cause:   cause,
	}
}

// LimitOf extracts the quota limit carried by a QuotaExceeded error.
func LimitOf(err error) (int, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && errors.Is(appErr.Err, ErrQuotaExceeded) {
		return appErr.Limit, true
	}
	return 0, false
}
