// Package formhawk exposes the public API of the form scanner: configuration,
// functional options, and the batch Scanner that drives fetching and
// analysis across targets.
package formhawk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/formhawk/formhawk/internal/analyzer"
	"github.com/formhawk/formhawk/internal/errors"
	"github.com/formhawk/formhawk/internal/output"
)

// Config holds all scanner configuration.
type Config struct {
	// Number of concurrent workers across targets. Each single document
	// is still analyzed synchronously.
	Workers int `json:"workers" yaml:"workers"`

	// Request timeout per fetch.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// User agent for outgoing requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// Custom headers to include in all requests.
	Headers map[string]string `json:"headers" yaml:"headers"`

	// Skip TLS certificate verification.
	InsecureTLS bool `json:"insecure_tls" yaml:"insecure_tls"`

	// Rate limiting for the fetch boundary.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Analysis engine settings.
	Analysis analyzer.Config `json:"analysis" yaml:"analysis"`

	// Output configuration.
	Output output.Config `json:"output" yaml:"output"`

	// Report persistence for resumable batch scans.
	State StateConfig `json:"state" yaml:"state"`

	// Verbose logging.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode.
	Debug bool `json:"debug" yaml:"debug"`
}

// RateLimitConfig holds fetch pacing settings.
type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `json:"burst" yaml:"burst"`
	DomainDelay       time.Duration `json:"domain_delay" yaml:"domain_delay"`
}

// StateConfig holds report persistence settings.
type StateConfig struct {
	// FilePath enables the BoltDB report store when set. Targets with a
	// stored report are skipped on resume.
	FilePath string `json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:   10,
		Timeout:   15 * time.Second,
		UserAgent: "formhawk/1.0 (+https://github.com/formhawk/formhawk)",
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Analysis: analyzer.DefaultConfig(),
		Output: output.Config{
			Format: "text",
			Pretty: true,
		},
	}
}

// Validate checks the configuration, failing fast before any document is
// analyzed. Every error names the invalid setting.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.NewConfigError("workers", "must be at least 1")
	}
	if c.Timeout < 0 {
		return errors.NewConfigError("timeout", "must not be negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return errors.NewConfigError("rate_limit.requests_per_second", "must not be negative")
	}
	if c.RateLimit.Burst < 0 {
		return errors.NewConfigError("rate_limit.burst", "must not be negative")
	}
	switch c.Output.Format {
	case "", "text", "json":
	default:
		return errors.NewConfigError("output.format", fmt.Sprintf("unknown format %q", c.Output.Format))
	}
	return c.Analysis.Validate()
}

// LoadFromFile loads configuration from a YAML or JSON file, layered over
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, errors.NewConfigError(path, fmt.Sprintf("invalid JSON: %v", err))
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.NewConfigError(path, fmt.Sprintf("invalid YAML: %v", err))
		}
	}

	config.Analysis.Normalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
