// Package apperr defines the error classes shared by the analyzer pipeline.
// Callers classify failures with errors.Is against the sentinels below.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any I/O when the request is unusable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration marks fatal setup problems, such as a missing search credential.
	// These are never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstream marks a non-success response from the search provider.
	ErrUpstream = errors.New("upstream error")

	// ErrPersistence marks a competitor store read or write failure.
	ErrPersistence = errors.New("persistence error")
)

// UpstreamError carries the provider status code of a failed search request.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: search provider returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: search provider returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrUpstream) match.
func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// Invalid wraps a formatted message as ErrInvalidInput.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Configuration wraps a formatted message as ErrConfiguration.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Persistence wraps err as ErrPersistence with the failing operation name.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
