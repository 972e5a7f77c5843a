// Package config loads the ambient, non-protocol settings shared by the
// sender and receiver commands. Wire-protocol constants (chunk size,
// window, cwnd/ssthresh/rto initial values) are fixed and never appear
// here — they live as constants beside the code that uses them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the ambient configuration surface: logging verbosity and
// whether/where to expose the diagnostic metrics server.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// MetricsConfig controls the optional Prometheus/health HTTP server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:0",
		},
	}
}

// Load reads and parses a YAML config file, starting from Default() so an
// unspecified field keeps its default value.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
