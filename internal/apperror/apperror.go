// Package apperror defines the error kinds the service layer reports to its callers.
//
// Every kind is a sentinel wrapped by *AppError, so callers match with errors.Is
// and read the human-readable message with errors.As. Anything that is not an
// *AppError is an unexpected infrastructure fault.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("Validation Error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrUserNotFound       = errors.New("user not found")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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

// Conflict reports a unique-constraint violation. field names the column that
// collided when the store can tell; it may be empty.
func Conflict(resource, field string) *AppError {
	msg := fmt.Sprintf("%s already exists", resource)
	if field != "" {
		msg = fmt.Sprintf("%s with this %s already exists", resource, field)
	}
	return &AppError{
		Err:     ErrConflict,
		Message: msg,
		Field:   field,
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

// Unauthorized is returned when a mutating call arrives without a resolved identity.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "valid authentication required",
	}
}

// InvalidCredentials is deliberately the same for an unknown email and a wrong password.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid credentials",
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:     ErrTokenExpired,
		Message: "Token expired",
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:     ErrTokenInvalid,
		Message: "Invalid token",
	}
}

// UserNotFound means a token referred to a user row that no longer exists.
func UserNotFound(id string) *AppError {
	return &AppError{
		Err:     ErrUserNotFound,
		Message: fmt.Sprintf("user not found with id %s", id),
	}
}
