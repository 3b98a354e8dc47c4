// Package domain contains the core domain models for the interview
// orchestrator: sessions, transcript segments, and notification records.
package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error leaving a component wraps exactly one of
// these sentinels so callers can classify with errors.Is.
var (
	// ErrNotFound is returned when a session or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for illegal state transitions, transcript
	// content mismatches, and attempts to overwrite finalized artifacts.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed or incomplete input.
	// No state is changed.
	ErrValidation = errors.New("validation failed")

	// ErrProviderTransient marks a provider failure worth retrying
	// (timeout, rate limit, 5xx). Retry is the caller's decision.
	ErrProviderTransient = errors.New("transient provider failure")

	// ErrProviderPermanent marks a provider failure that will not
	// succeed on retry (bad credentials, invalid request).
	ErrProviderPermanent = errors.New("permanent provider failure")
)

// Conflictf builds a conflict error with a descriptive reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Validationf builds a validation error with a descriptive reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
