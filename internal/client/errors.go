package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes returned by the backend
const (
	// CodeConstraintViolation is reported when a write breaks a unique constraint
	CodeConstraintViolation = "23505"
	CodeNotFound            = "not_found"
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeInvalidInput        = "invalid_input"
	CodeInternal            = "internal"
)

var (
	// ErrNoSession indicates that no valid session exists and none can be created
	ErrNoSession = errors.New("no active session")
)

// APIError is a structured error returned by the remote service
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
}

// ErrRateLimited indicates the server kept answering 429 after all retries
type ErrRateLimited struct {
	RetryAfter int // seconds
}

func (e ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// IsConstraintViolation reports whether err is a unique-constraint failure
func IsConstraintViolation(err error) bool {
	return hasCode(err, CodeConstraintViolation)
}

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == CodeNotFound || apiErr.Status == http.StatusNotFound
	}
	return false
}

// IsUnauthorized reports whether err means the session is missing or rejected
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNoSession) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == CodeUnauthorized || apiErr.Status == http.StatusUnauthorized
	}
	return false
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
