// Package services provides the workflow operations exposed to callers and
// their error taxonomy.
package services

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. NotFound is persistence.ErrWorkflowNotFound.
var (
	// ErrInvalidRequest marks validation failures (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthenticated marks calls without a caller identity (401 Unauthorized).
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden marks calls the caller is not entitled to make (403 Forbidden).
	ErrForbidden = errors.New("forbidden")

	// ErrConflict marks writes rejected by a uniqueness constraint; retrying
	// with fresh identifiers may succeed (409 Conflict).
	ErrConflict = errors.New("conflict")

	// ErrInternal marks unexpected failures (500 Internal Server Error).
	ErrInternal = errors.New("internal error")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsUnauthenticatedError checks if an error should return HTTP 401.
func IsUnauthenticatedError(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsForbiddenError checks if an error should return HTTP 403.
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsConflictError checks if an error is a retryable conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInternalError checks if an error is an unexpected failure.
func IsInternalError(err error) bool {
	return errors.Is(err, ErrInternal)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return newServiceError(op, code, message, ErrInvalidRequest, err)
}

func newUnauthenticatedError(op string) *ServiceError {
	return newServiceError(op, "unauthenticated", "caller identity is required", ErrUnauthenticated, nil)
}

func newForbiddenError(op, message string) *ServiceError {
	return newServiceError(op, "forbidden", message, ErrForbidden, nil)
}

func newConflictError(op, message string, err error) *ServiceError {
	return newServiceError(op, "conflict", message, ErrConflict, err)
}

// newInternalError hides the cause from Error() but keeps it reachable
// through errors.Is and errors.As.
func newInternalError(op, message string, err error) *ServiceError {
	return newServiceError(op, "internal_error", message, ErrInternal, err)
}

func newServiceError(op, code, message string, kind, cause error) *ServiceError {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}

	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
