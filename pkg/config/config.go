// Package config provides configuration loading and validation for oracled.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.UpdateInterval.ToDuration() == 0 {
		cfg.Engine.UpdateInterval = Duration(60 * time.Second)
	}
	if cfg.Engine.HealthInterval.ToDuration() == 0 {
		cfg.Engine.HealthInterval = Duration(5 * time.Minute)
	}
	if cfg.Engine.FailureAlertThreshold == 0 {
		cfg.Engine.FailureAlertThreshold = 5
	}
	if cfg.Engine.ReferenceAsset == "" && len(cfg.Assets) > 0 {
		cfg.Engine.ReferenceAsset = cfg.Assets[0]
	}

	// Pool defaults
	if cfg.Pool.FetchTimeout.ToDuration() == 0 {
		cfg.Pool.FetchTimeout = Duration(10 * time.Second)
	}
	if cfg.Pool.MaxAttempts == 0 {
		cfg.Pool.MaxAttempts = 3
	}
	if cfg.Pool.BackoffBase.ToDuration() == 0 {
		cfg.Pool.BackoffBase = Duration(time.Second)
	}

	// Acceptance policy defaults
	if cfg.Validation.MinSources == 0 {
		cfg.Validation.MinSources = 3
	}
	if cfg.Validation.MaxDeviationBp == 0 {
		cfg.Validation.MaxDeviationBp = 1000
	}
	if cfg.Validation.StalenessThreshold.ToDuration() == 0 {
		cfg.Validation.StalenessThreshold = Duration(time.Hour)
	}

	// Registry defaults
	if cfg.Registry.Backend == "" {
		cfg.Registry.Backend = "memory"
	}
	if cfg.Registry.Redis.Addr == "" {
		cfg.Registry.Redis.Addr = "localhost:6379"
	}

	// Alert defaults
	if cfg.Alerts.Timeout.ToDuration() == 0 {
		cfg.Alerts.Timeout = Duration(10 * time.Second)
	}

	// API defaults
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// GetString retrieves a string value from the source configuration.
func (sc *SourceConfig) GetString(key, defaultValue string) string {
	if val, ok := sc.Config[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a string slice from source config.
func (sc *SourceConfig) GetStringSlice(key string) []string {
	if val, ok := sc.Config[key]; ok {
		if slice, ok := val.([]interface{}); ok {
			result := make([]string, 0, len(slice))
			for _, item := range slice {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
	}
	return nil
}

// GetBool retrieves a boolean from source config.
func (sc *SourceConfig) GetBool(key string, defaultValue bool) bool {
	if val, ok := sc.Config[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultValue
}
