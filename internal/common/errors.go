// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/contact-sync/internal/model"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Reconciliation errors.
	ErrValidation          = errors.New("validation failed")
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrNoRecords           = errors.New("no records to reconcile")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports a malformed name or phone. It is recoverable and
// is surfaced per record without aborting the batch.
type ValidationError struct {
	Err    error
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DuplicateConflictError is returned when creating an identity would collide
// with an existing registry entry. Existing carries the colliding identity so
// callers can offer to keep it instead.
type DuplicateConflictError struct {
	Field    string
	Existing model.Identity
}

func (e *DuplicateConflictError) Error() string {
	return fmt.Sprintf("duplicate %s: conflicts with identity %q (%s)", e.Field, e.Existing.Name, e.Existing.ID)
}

func (e *DuplicateConflictError) Unwrap() error {
	return ErrDuplicateEntry
}

// RegistryUnavailableError means the batch fetch of registry identities
// failed. It is fatal for the whole reconciliation run.
type RegistryUnavailableError struct {
	Err error
}

func (e *RegistryUnavailableError) Error() string {
	return fmt.Sprintf("registry unavailable, no partial results: %v", e.Err)
}

func (e *RegistryUnavailableError) Unwrap() []error {
	return []error{ErrRegistryUnavailable, e.Err}
}

// InvariantViolationError indicates a bug: an internal guarantee did not hold.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violated (%s): %s", e.Invariant, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}

// ErrorTypeOf maps an error onto the per-record error taxonomy.
func ErrorTypeOf(err error) model.ErrorType {
	var dup *DuplicateConflictError
	switch {
	case errors.As(err, &dup):
		return model.ErrorDuplicateConflict
	case errors.Is(err, ErrInvariantViolation):
		return model.ErrorInvariantViolation
	default:
		return model.ErrorValidation
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
