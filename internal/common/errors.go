// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Rate source errors.
	ErrRateSourceUnavailable = errors.New("rate source unavailable")
	ErrRateSeriesUnavailable = errors.New("rate series unavailable")

	// Correction errors.
	ErrInvalidNumericInput = errors.New("invalid numeric input")
	ErrInvalidDateRange    = errors.New("invalid date range")

	// Analysis errors.
	ErrNoRulesConfigured = errors.New("no retention rules configured")
	ErrInvalidPayment    = errors.New("invalid payment record")
	ErrInvalidRule       = errors.New("invalid retention rule")

	// Lifecycle errors.
	ErrInvalidTransition = errors.New("invalid transition")

	// Export errors.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

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

// IsRecordError reports whether err only invalidates a single record.
// Batch processing skips such records and keeps going.
func IsRecordError(err error) bool {
	return errors.Is(err, ErrInvalidNumericInput) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidPayment)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrRateSourceUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
