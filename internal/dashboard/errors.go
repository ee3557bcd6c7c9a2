package dashboard

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginRequired means there is no usable session; the caller must
	// send the user back to the login screen
	ErrLoginRequired = errors.New("login required")

	// ErrPermissionDenied is returned for write commands from non-managers
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidInput is matched by every ValidationError
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownCommand is returned by Dispatch for commands it has no handler for
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoSuchRecord is returned when a command targets a record the cache does not hold
	ErrNoSuchRecord = errors.New("no such record")
)

// ValidationError reports an input field rejected before any remote call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrInvalidInput) hold for validation errors
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
