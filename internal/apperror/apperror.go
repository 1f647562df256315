// Package apperror defines the error taxonomy surfaced by the HTTP layer.
//
// Handlers and the ingestion pipeline return *AppError values; the API layer
// maps the sentinel kind to an HTTP status and sends the message verbatim to
// the client. Anything that is not an AppError is a server fault and gets a
// generic 500 body so internals never leak.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrCredentials  = errors.New("invalid credentials")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

type AppError struct {
	Err     error  // sentinel kind, used for status mapping
	Message string // human-readable message sent to the client
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// BadRequest builds a 400 error with a formatted message.
func BadRequest(format string, args ...any) *AppError {
	return &AppError{
		Err:     ErrBadRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// Unauthorized maps to 403: the caller presented no or bad credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Credentials maps to 401: a login attempt with wrong email or password.
func Credentials(message string) *AppError {
	return &AppError{
		Err:     ErrCredentials,
		Message: message,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}
