package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if cfg.Node.Identity == "" {
		return fmt.Errorf("node config: %w", ErrNodeIdentityRequired)
	}
	if cfg.Node.Admin == "" {
		return fmt.Errorf("node config: %w", ErrAdminIdentityRequired)
	}

	if len(cfg.Assets) == 0 {
		return fmt.Errorf("%w", ErrNoAssetsConfigured)
	}
	seen := make(map[string]bool, len(cfg.Assets))
	for i, asset := range cfg.Assets {
		if strings.TrimSpace(asset) == "" {
			return fmt.Errorf("asset[%d]: %w", i, ErrEmptyAssetSymbol)
		}
		if seen[asset] {
			return fmt.Errorf("asset[%d] %s: %w", i, asset, ErrDuplicateAsset)
		}
		seen[asset] = true
	}

	if len(cfg.Sources) == 0 {
		return fmt.Errorf("%w", ErrNoSourcesConfigured)
	}
	for i, source := range cfg.Sources {
		if err := validateSourceConfig(&source); err != nil {
			return fmt.Errorf("source %d (%s.%s): %w", i, source.Type, source.Name, err)
		}
	}

	if err := validateRegistryConfig(&cfg.Registry); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}

	if err := validateValidationConfig(&cfg.Validation); err != nil {
		return fmt.Errorf("validation config: %w", err)
	}

	if cfg.Pool.MaxAttempts < 1 {
		return fmt.Errorf("pool config: %w", ErrMaxAttemptsTooLow)
	}
	for i, excl := range cfg.Pool.Exclusions {
		if excl.Asset == "" || excl.Source == "" {
			return fmt.Errorf("pool config: exclusion[%d]: %w", i, ErrIncompleteExclusion)
		}
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateSourceConfig(cfg *SourceConfig) error {
	if cfg.Type == "" {
		return fmt.Errorf("%w", ErrSourceTypeRequired)
	}
	if cfg.Name == "" {
		return fmt.Errorf("%w", ErrSourceNameRequired)
	}
	return nil
}

func validateRegistryConfig(cfg *RegistryConfig) error {
	backend := strings.ToLower(cfg.Backend)
	if backend != "memory" && backend != "redis" {
		return fmt.Errorf("%w: %s (must be 'memory' or 'redis')", ErrInvalidRegistryBackend, cfg.Backend)
	}
	if backend == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("%w", ErrRedisAddrRequired)
	}
	return nil
}

func validateValidationConfig(cfg *ValidationConfig) error {
	if cfg.MinSources < 1 {
		return fmt.Errorf("%w: %d", ErrMinSourcesTooLow, cfg.MinSources)
	}
	if cfg.MaxDeviationBp <= 0 {
		return fmt.Errorf("%w: %d", ErrMaxDeviationNotPositive, cfg.MaxDeviationBp)
	}
	if cfg.StalenessThreshold.ToDuration() <= 0 {
		return fmt.Errorf("%w", ErrStalenessNotPositive)
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
