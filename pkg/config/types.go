package config

import "time"

// Config is the root configuration structure
type Config struct {
	Node       NodeConfig       `yaml:"node"`
	Assets     []string         `yaml:"assets"`
	Engine     EngineConfig     `yaml:"engine"`
	Pool       PoolConfig       `yaml:"pool"`
	Validation ValidationConfig `yaml:"validation"`
	Registry   RegistryConfig   `yaml:"registry"`
	Sources    []SourceConfig   `yaml:"sources"`
	Alerts     AlertConfig      `yaml:"alerts"`
	API        APIConfig        `yaml:"api"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// NodeConfig identifies this process against the registry
type NodeConfig struct {
	Identity string `yaml:"identity"` // publisher identity used for price writes
	Admin    string `yaml:"admin"`    // governance identity seeded into the registry
}

// EngineConfig configures the scheduler and health monitor
type EngineConfig struct {
	UpdateInterval        Duration `yaml:"update_interval"`         // full price cycle period
	HealthInterval        Duration `yaml:"health_interval"`         // health probe period
	FailureAlertThreshold int      `yaml:"failure_alert_threshold"` // consecutive failures before alerting
	ReferenceAsset        string   `yaml:"reference_asset"`         // asset used for source liveness probes
}

// PoolConfig configures source fetching
type PoolConfig struct {
	FetchTimeout Duration          `yaml:"fetch_timeout"` // hard per-call timeout
	MaxAttempts  int               `yaml:"max_attempts"`  // retry attempts per fetch
	BackoffBase  Duration          `yaml:"backoff_base"`  // backoff = base * attempt
	Exclusions   []ExclusionConfig `yaml:"exclusions"`    // asset/source pairs never fetched
}

// ExclusionConfig marks one asset as unavailable on one source
type ExclusionConfig struct {
	Asset  string `yaml:"asset"`
	Source string `yaml:"source"`
}

// ValidationConfig configures the acceptance policy
type ValidationConfig struct {
	MinSources         int      `yaml:"min_sources"`
	MaxDeviationBp     int64    `yaml:"max_deviation_bp"`
	StalenessThreshold Duration `yaml:"staleness_threshold"`
}

// RegistryConfig selects and configures the published-price store
type RegistryConfig struct {
	Backend string      `yaml:"backend"` // "memory" or "redis"
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis registry backend
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SourceConfig configures a price source
type SourceConfig struct {
	Type    string                 `yaml:"type"`
	Name    string                 `yaml:"name"`
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config"`
}

// AlertConfig configures the alert sink
type AlertConfig struct {
	WebhookURL string   `yaml:"webhook_url"` // empty means log-only alerts
	Timeout    Duration `yaml:"timeout"`
}

// APIConfig configures the read API
type APIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	WebSocket bool   `yaml:"websocket"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
