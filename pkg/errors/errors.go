// Package errors defines the API error catalog. Codes are dotted
// "<area>.<reason>" strings that clients can switch on.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with a client-facing code, message and HTTP status.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches any AppError carrying the same code, so copies made with
// WithInternal or WithMessage still match the catalog entry.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy that wraps err.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy with a different client message.
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Message = fmt.Sprintf(format, args...)
	return &cpy
}

var (
	ErrInvalidRequest   = New("request.invalid", "Invalid request", http.StatusBadRequest)
	ErrRouteNotFound    = New("route.not_found", "Route not found", http.StatusNotFound)
	ErrTableNotFound    = New("table.not_found", "Table not found", http.StatusNotFound)
	ErrStoreUnavailable = New("store.unavailable", "Data store is not configured", http.StatusServiceUnavailable)
	ErrStoreTimeout     = New("store.timeout", "Data store did not respond in time", http.StatusGatewayTimeout)
	ErrStoreQuery       = New("store.query_failed", "Data store query failed", http.StatusBadGateway)
	ErrInternal         = New("internal", "Internal server error", http.StatusInternalServerError)
)

func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// Invalid reports a client input problem.
func Invalid(message string) *AppError {
	return ErrInvalidRequest.WithMessage("%s", message)
}

// Wrap hides err behind a generic internal error with message.
func Wrap(err error, message string) *AppError {
	return ErrInternal.WithMessage("%s", message).WithInternal(err)
}

// FromError returns the AppError in err's chain, or ErrInternal wrapping err.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.WithInternal(err)
}
