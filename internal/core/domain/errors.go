package domain

import "errors"

var ErrValidation = errors.New("validation failed")
var ErrConflict = errors.New("username or email already exists")
var ErrInvalidCredentials = errors.New("invalid username or password")
var ErrAccountLocked = errors.New("account is temporarily locked")
var ErrAccountInactive = errors.New("account is inactive")
var ErrAuthenticationRequired = errors.New("authentication required")
var ErrPermissionDenied = errors.New("permission denied")
var ErrStoreUnavailable = errors.New("record store unavailable")
var ErrNotFound = errors.New("record not found")
var ErrAccountNotFound = errors.New("account not found")
var ErrSessionNotFound = errors.New("session not found")
var ErrCSRFTokenInvalid = errors.New("invalid or missing CSRF token")
var ErrRateLimited = errors.New("too many requests")

// ValidationError carries a message that is safe to show to the caller as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
