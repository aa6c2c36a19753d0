// Package config handles daemon configuration loading and validation.
// Runtime settings (feature flags, thresholds) live in the synced
// bucket instead; this file covers what must exist before the database
// is open.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	API     APIConfig   `yaml:"api"`
	Probe   ProbeConfig `yaml:"probe"`
	DataDir string      `yaml:"-"` // set by caller, not from config file
}

// APIConfig holds tracker API settings.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ProbeConfig holds idle-probe settings.
type ProbeConfig struct {
	// IntervalSeconds is the cadence at which host idle state is read.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// Interval returns the probe cadence as a duration.
func (p ProbeConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "https://api.clickup.com/api/v2",
			TimeoutSeconds: 10,
		},
		Probe: ProbeConfig{
			IntervalSeconds: 15,
		},
	}
}

// Load reads configuration from the given path and sets the data
// directory. If configPath is empty or doesn't exist, returns defaults
// with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = def.API.TimeoutSeconds
	}
	if c.Probe.IntervalSeconds == 0 {
		c.Probe.IntervalSeconds = def.Probe.IntervalSeconds
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not a valid URL", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds < 1 {
		return fmt.Errorf("api.timeout_seconds must be >= 1, got %d", c.API.TimeoutSeconds)
	}
	if c.Probe.IntervalSeconds < 1 {
		return fmt.Errorf("probe.interval_seconds must be >= 1, got %d", c.Probe.IntervalSeconds)
	}
	return nil
}
