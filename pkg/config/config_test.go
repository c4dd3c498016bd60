package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
node:
  identity: "oracled-test"
  admin: "governance"

assets:
  - BTC
  - ETH

sources:
  - type: cex
    name: binance
    enabled: true
    config:
      pairs:
        BTC: "BTCUSDT"
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "oracled-test", cfg.Node.Identity)
	assert.Equal(t, "governance", cfg.Node.Admin)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Assets)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "binance", cfg.Sources[0].Name)
	assert.True(t, cfg.Sources[0].Enabled)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Engine.UpdateInterval.ToDuration())
	assert.Equal(t, 5*time.Minute, cfg.Engine.HealthInterval.ToDuration())
	assert.Equal(t, 5, cfg.Engine.FailureAlertThreshold)
	assert.Equal(t, "BTC", cfg.Engine.ReferenceAsset)

	assert.Equal(t, 10*time.Second, cfg.Pool.FetchTimeout.ToDuration())
	assert.Equal(t, 3, cfg.Pool.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Pool.BackoffBase.ToDuration())

	assert.Equal(t, 3, cfg.Validation.MinSources)
	assert.Equal(t, int64(1000), cfg.Validation.MaxDeviationBp)
	assert.Equal(t, time.Hour, cfg.Validation.StalenessThreshold.ToDuration())

	assert.Equal(t, "memory", cfg.Registry.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_ORACLE_ADMIN", "env-admin")

	content := `
node:
  identity: "oracled-test"
  admin: "${TEST_ORACLE_ADMIN}"
assets:
  - BTC
sources:
  - type: cex
    name: binance
    enabled: true
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "env-admin", cfg.Node.Admin)
}

func TestLoad_ParsesDurations(t *testing.T) {
	content := minimalConfig + `
engine:
  update_interval: "30s"
  health_interval: "2m"
validation:
  staleness_threshold: "45m"
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Engine.UpdateInterval.ToDuration())
	assert.Equal(t, 2*time.Minute, cfg.Engine.HealthInterval.ToDuration())
	assert.Equal(t, 45*time.Minute, cfg.Validation.StalenessThreshold.ToDuration())
}

func TestLoad_InvalidDuration(t *testing.T) {
	content := minimalConfig + `
engine:
  update_interval: "soon"
`
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing identity",
			mutate:  func(c *Config) { c.Node.Identity = "" },
			wantErr: ErrNodeIdentityRequired,
		},
		{
			name:    "missing admin",
			mutate:  func(c *Config) { c.Node.Admin = "" },
			wantErr: ErrAdminIdentityRequired,
		},
		{
			name:    "no assets",
			mutate:  func(c *Config) { c.Assets = nil },
			wantErr: ErrNoAssetsConfigured,
		},
		{
			name:    "duplicate asset",
			mutate:  func(c *Config) { c.Assets = []string{"BTC", "BTC"} },
			wantErr: ErrDuplicateAsset,
		},
		{
			name:    "no sources",
			mutate:  func(c *Config) { c.Sources = nil },
			wantErr: ErrNoSourcesConfigured,
		},
		{
			name:    "source without type",
			mutate:  func(c *Config) { c.Sources[0].Type = "" },
			wantErr: ErrSourceTypeRequired,
		},
		{
			name:    "unknown registry backend",
			mutate:  func(c *Config) { c.Registry.Backend = "etcd" },
			wantErr: ErrInvalidRegistryBackend,
		},
		{
			name:    "min sources too low",
			mutate:  func(c *Config) { c.Validation.MinSources = 0 },
			wantErr: ErrMinSourcesTooLow,
		},
		{
			name:    "non-positive deviation",
			mutate:  func(c *Config) { c.Validation.MaxDeviationBp = -1 },
			wantErr: ErrMaxDeviationNotPositive,
		},
		{
			name:    "incomplete exclusion",
			mutate:  func(c *Config) { c.Pool.Exclusions = []ExclusionConfig{{Asset: "BTC"}} },
			wantErr: ErrIncompleteExclusion,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSourceConfig_Getters(t *testing.T) {
	sc := SourceConfig{Config: map[string]interface{}{
		"api_url": "https://example.com",
		"enabled": true,
		"tags":    []interface{}{"a", "b"},
	}}

	assert.Equal(t, "https://example.com", sc.GetString("api_url", "fallback"))
	assert.Equal(t, "fallback", sc.GetString("missing", "fallback"))
	assert.True(t, sc.GetBool("enabled", false))
	assert.False(t, sc.GetBool("missing", false))
	assert.Equal(t, []string{"a", "b"}, sc.GetStringSlice("tags"))
	assert.Nil(t, sc.GetStringSlice("missing"))
}
