// Package apperror defines the error taxonomy shared by the stores, the
// services and the HTTP layer.
//
// Every failure the API reports to a client is one of four kinds:
//
//	ErrUnauthorized -> 401  (no identity, bad credentials)
//	ErrValidation   -> 400  (bad activity type, time range, body shape)
//	ErrNotFound     -> 404  (missing, or owned by someone else)
//	ErrConflict     -> 409  (duplicate email)
//
// Anything else is a store or programming failure and becomes a 500 with a
// generic message. Lower layers return *AppError values; upper layers wrap
// them with fmt.Errorf("...: %w", err) and errors.Is still finds the sentinel.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel
	Message string // safe to show to the client
	Field   string // optional: request field that failed validation
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound is also returned when the resource exists but belongs to another
// user, so callers cannot probe for other users' IDs.
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

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
