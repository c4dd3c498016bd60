// Package sources provides price source interfaces and venue adapters.
package sources

import "errors"

var (
	// ErrUnsupportedAsset indicates that the source does not quote this asset.
	ErrUnsupportedAsset = errors.New("asset not supported by source")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRateLimitExceeded indicates that a rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidResponse indicates an invalid response from the source.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrAPIError indicates an API-level error reported by the venue.
	ErrAPIError = errors.New("API error")
	// ErrNonPositivePrice indicates that the venue returned a zero or negative price.
	ErrNonPositivePrice = errors.New("non-positive price")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoPairsConfigured indicates that no pairs are configured.
	ErrNoPairsConfigured = errors.New("no pairs configured")
	// ErrUnknownSource indicates that no factory is registered under the name.
	ErrUnknownSource = errors.New("unknown source")
)
