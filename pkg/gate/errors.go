// Package gate decides whether a price value may be written to the
// registry and manages publisher lifecycle.
package gate

import "errors"

var (
	// ErrNotAuthorized indicates that the caller lacks publish or admin rights.
	ErrNotAuthorized = errors.New("caller not authorized")
	// ErrInsufficientSources indicates fewer source readings than the minimum.
	ErrInsufficientSources = errors.New("insufficient source readings")
	// ErrMismatchedInput indicates that source names and prices differ in length.
	ErrMismatchedInput = errors.New("source names and prices length mismatch")
	// ErrValidationFailed indicates that the candidate failed the acceptance policy.
	ErrValidationFailed = errors.New("candidate price failed validation")
	// ErrRegistryUnavailable indicates that the registry write transport failed.
	ErrRegistryUnavailable = errors.New("registry unavailable")
)
