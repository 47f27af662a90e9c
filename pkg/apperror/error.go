// Package apperror defines coded application errors shared across domains.
package apperror

import "fmt"

// Error carries a machine-readable code alongside a human-readable message.
// Internal holds the underlying cause and is never shown to the user.
type Error struct {
	Code     string
	Message  string
	Internal error
	Details  map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches two app errors by code, so errors.Is works on sentinels
// that have been decorated with WithInternal or WithMessage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		Code:     e.Code,
		Message:  e.Message,
		Internal: err,
		Details:  e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Code:     e.Code,
		Message:  message,
		Internal: e.Internal,
		Details:  e.Details,
	}
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		Code:     e.Code,
		Message:  e.Message,
		Internal: e.Internal,
		Details:  details,
	}
}

// New creates a new application error
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Common error definitions
var (
	// Resource errors
	ErrNotFound = New("not_found", "Resource not found")
	ErrConflict = New("conflict", "Resource already exists")

	// Validation errors
	ErrBadRequest = New("bad_request", "Invalid request")
	ErrValidation = New("validation_error", "Validation failed")

	// Infrastructure errors
	ErrInternal    = New("internal_error", "An internal error occurred")
	ErrDatabase    = New("database_error", "Database operation failed")
	ErrUnavailable = New("unavailable", "Service not available")

	// External collaborator errors
	ErrLLM           = New("llm_error", "Language model request failed")
	ErrNotConfigured = New("not_configured", "Required provider is not configured")
)

// NewBadRequest creates a bad request error with a custom message
func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

// NewNotFound creates a not found error for a resource type and ID
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewInternal creates an internal error with a message and optional wrapped error
func NewInternal(message string, err error) *Error {
	return &Error{
		Code:     "internal_error",
		Message:  message,
		Internal: err,
	}
}
