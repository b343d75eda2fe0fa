package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a coded authentication/authorization failure. Code is a stable
// machine-readable contract for clients; Status is the HTTP status it maps to
// regardless of message text.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth: %s: %s", e.Code, e.Message)
}

// Is matches errors by code so wrapped and copied values compare equal.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithMessage returns a copy carrying a different message but the same code
// and status.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Status: e.Status, Message: msg}
}

var (
	ErrTokenRequired = &Error{Code: "TOKEN_REQUIRED", Status: http.StatusUnauthorized, Message: "authentication token is required"}
	ErrInvalidToken  = &Error{Code: "INVALID_TOKEN", Status: http.StatusUnauthorized, Message: "token is malformed or has an invalid signature"}
	ErrTokenExpired  = &Error{Code: "TOKEN_EXPIRED", Status: http.StatusUnauthorized, Message: "token has expired"}
	ErrUserNotFound  = &Error{Code: "USER_NOT_FOUND", Status: http.StatusUnauthorized, Message: "user no longer exists"}
	ErrUserInactive  = &Error{Code: "USER_INACTIVE", Status: http.StatusUnauthorized, Message: "user account is deactivated"}
	ErrAuthRequired  = &Error{Code: "AUTH_REQUIRED", Status: http.StatusUnauthorized, Message: "authentication is required"}

	// ErrInvalidCredentials is the single answer for unknown email, inactive
	// account and wrong password on the login path.
	ErrInvalidCredentials = &Error{Code: "INVALID_CREDENTIALS", Status: http.StatusUnauthorized, Message: "invalid email or password"}

	ErrMissingCredentials = &Error{Code: "MISSING_CREDENTIALS", Status: http.StatusBadRequest, Message: "email and password are required"}
	ErrUserAlreadyExists  = &Error{Code: "USER_ALREADY_EXISTS", Status: http.StatusConflict, Message: "a user with this email already exists"}
	ErrForbidden          = &Error{Code: "INSUFFICIENT_PERMISSIONS", Status: http.StatusForbidden, Message: "insufficient permissions"}
	ErrValidation         = &Error{Code: "VALIDATION_ERROR", Status: http.StatusBadRequest, Message: "invalid input"}
	ErrNotFound           = &Error{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: "resource not found"}
	ErrRateLimited        = &Error{Code: "RATE_LIMITED", Status: http.StatusTooManyRequests, Message: "too many requests"}
	ErrInternal           = &Error{Code: "INTERNAL", Status: http.StatusInternalServerError, Message: "internal error"}
)

// AsError extracts a coded error, falling back to ErrInternal so handlers
// never leak details of unexpected failures.
func AsError(err error) *Error {
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	return ErrInternal
}
