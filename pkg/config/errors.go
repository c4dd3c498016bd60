// Package config provides configuration loading and validation for oracled.
package config

import "errors"

var (
	// ErrNodeIdentityRequired indicates that node.identity must be specified.
	ErrNodeIdentityRequired = errors.New("node identity must be specified")
	// ErrAdminIdentityRequired indicates that node.admin must be specified.
	ErrAdminIdentityRequired = errors.New("admin identity must be specified")
	// ErrNoAssetsConfigured indicates that no tracked assets are configured.
	ErrNoAssetsConfigured = errors.New("at least one asset must be configured")
	// ErrEmptyAssetSymbol indicates an empty asset symbol.
	ErrEmptyAssetSymbol = errors.New("asset symbol cannot be empty")
	// ErrDuplicateAsset indicates a duplicated asset symbol.
	ErrDuplicateAsset = errors.New("duplicate asset symbol")
	// ErrNoSourcesConfigured indicates that no price sources are configured.
	ErrNoSourcesConfigured = errors.New("at least one price source must be configured")
	// ErrSourceTypeRequired indicates that source type is required.
	ErrSourceTypeRequired = errors.New("source type is required")
	// ErrSourceNameRequired indicates that source name is required.
	ErrSourceNameRequired = errors.New("source name is required")
	// ErrInvalidRegistryBackend indicates an unknown registry backend.
	ErrInvalidRegistryBackend = errors.New("invalid registry backend")
	// ErrRedisAddrRequired indicates that redis.addr must be specified.
	ErrRedisAddrRequired = errors.New("redis addr must be specified for redis backend")
	// ErrMinSourcesTooLow indicates that min_sources must be at least 1.
	ErrMinSourcesTooLow = errors.New("min_sources must be at least 1")
	// ErrMaxDeviationNotPositive indicates that max_deviation_bp must be positive.
	ErrMaxDeviationNotPositive = errors.New("max_deviation_bp must be positive")
	// ErrStalenessNotPositive indicates that staleness_threshold must be positive.
	ErrStalenessNotPositive = errors.New("staleness_threshold must be positive")
	// ErrMaxAttemptsTooLow indicates that max_attempts must be at least 1.
	ErrMaxAttemptsTooLow = errors.New("max_attempts must be at least 1")
	// ErrIncompleteExclusion indicates an exclusion missing asset or source.
	ErrIncompleteExclusion = errors.New("exclusion requires both asset and source")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
