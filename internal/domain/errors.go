package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSourceID indicates that a source id was registered twice.
	// It always points at a configuration or programming defect, so it is
	// fatal at registry construction time.
	ErrDuplicateSourceID = errors.New("duplicate source id")

	// ErrUnknownSource indicates that a caller restricted a dispatch to a
	// source id that is not registered. It is recorded against that id in
	// the aggregate result, never raised as a call-level failure.
	ErrUnknownSource = errors.New("unknown source")

	// ErrNotSupported indicates that a source does not implement the
	// requested operation.
	ErrNotSupported = errors.New("operation not supported by source")

	// ErrRateLimitTimeout indicates that neither the per-source bucket nor
	// the global concurrency gate admitted a call within the wait bound.
	ErrRateLimitTimeout = errors.New("rate limit admission timed out")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCacheIO indicates a cache persistence failure. The cache degrades
	// to miss behavior on this error; it must never fail a search.
	ErrCacheIO = errors.New("cache i/o failure")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// DuplicateSourceError reports a second registration of a source id.
type DuplicateSourceError struct {
	ID string
}

// Error implements the error interface.
func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("source already registered: %s", e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *DuplicateSourceError) Unwrap() error {
	return ErrDuplicateSourceID
}

// UnknownSourceError reports a dispatch restricted to an unregistered id.
type UnknownSourceError struct {
	ID string
}

// Error implements the error interface.
func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source: %s", e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *UnknownSourceError) Unwrap() error {
	return ErrUnknownSource
}

// RateLimitTimeoutError reports that admission for a source timed out.
type RateLimitTimeoutError struct {
	Source string
	Waited time.Duration
}

// Error implements the error interface.
func (e *RateLimitTimeoutError) Error() string {
	return fmt.Sprintf("rate limit admission for %s timed out after %s", e.Source, e.Waited)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitTimeoutError) Unwrap() error {
	return ErrRateLimitTimeout
}

// SourceError wraps whatever a source adapter reports: network failure,
// malformed response, authentication failure. It is always scoped to one
// source and never aborts the aggregate call.
type SourceError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s source error (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s source error: %s", e.Source, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *SourceError) Unwrap() error {
	return e.Cause
}

// NewSourceError creates a new SourceError.
func NewSourceError(source string, statusCode int, message string, cause error) *SourceError {
	return &SourceError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
