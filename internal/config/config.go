// Package config loads the top-level application configuration: a YAML
// file overlaid with KB_* environment variables, the same two-stage
// pattern internal/store.Config uses for the database subsection.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glenn-edgar/kbcoord/internal/store"
)

// Config is the whole-process configuration: store connection, server
// listen address, a retry/backoff section, and the log level.
type Config struct {
	Database store.Config `yaml:"database"`
	Server   ServerConfig `yaml:"server"`
	Retry    RetryConfig  `yaml:"retry"`
	LogLevel string       `yaml:"log_level"`
}

// ServerConfig configures the introspection HTTP API (internal/api).
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RetryConfig mirrors the fields of internal/retry.Policy, and its defaults
// equal retry.DefaultPolicy. It is loaded and validated only: the kb
// packages retry with retry.DefaultPolicy and do not read these values.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: *store.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:     5,
			InitialInterval: 25 * time.Millisecond,
			MaxInterval:     8 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads path (if non-empty) as YAML onto Default(), then overlays
// KB_DB_* environment variables via store.Config.LoadFromEnv, then
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.Database.LoadFromEnv()
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	if cfg.Server.Addr == "" {
		return nil, fmt.Errorf("server.addr is required")
	}
	return cfg, nil
}
