// Package registry provides the published-price store and publisher
// authorization set behind the publication gate.
package registry

import "errors"

var (
	// ErrAssetNotFound indicates that no value was ever published for the asset.
	ErrAssetNotFound = errors.New("no published value for asset")
	// ErrPublisherNotFound indicates that the identity was never registered.
	ErrPublisherNotFound = errors.New("publisher not found")
	// ErrPublisherAlreadyActive indicates a registration for an already-active identity.
	ErrPublisherAlreadyActive = errors.New("publisher already active")
	// ErrPublisherNotActive indicates a deactivation for an inactive identity.
	ErrPublisherNotActive = errors.New("publisher not active")
	// ErrNonPositivePrice indicates a write with a zero or negative price.
	ErrNonPositivePrice = errors.New("price must be positive")
	// ErrEmptyIdentity indicates an empty publisher identity.
	ErrEmptyIdentity = errors.New("identity cannot be empty")
	// ErrUnavailable indicates that the backing store could not be reached.
	ErrUnavailable = errors.New("registry unavailable")
)
