// Package errors provides domain-specific error types and sentinel errors
// for the enrichment pipeline and its provider client.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates the provider answered but had no data.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates a malformed location token.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrMalformedResponse indicates the provider returned a body that
	// does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ProviderError represents a failed lookup against the air-quality provider:
// transport failure, timeout, non-2xx status or an undecodable body.
type ProviderError struct {
	Op         string // cities or latest
	URL        string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s failed (url=%s, status=%d): %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s failed (url=%s): %v", e.Op, e.URL, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error. Context deadline errors are
// tagged with ErrTimeout so callers can tell timeouts apart.
func NewProviderError(op, url string, statusCode int, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &ProviderError{
		Op:         op,
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Kind returns a low-cardinality label for metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
