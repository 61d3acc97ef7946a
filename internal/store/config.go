// Package store owns the connection to the backing relational store: pool
// configuration, the pgx-backed runtime connection used by every kb
// package, and the lib/pq-backed migration runner. This is the "TCP/
// credential layer" spec.md §1 calls out of scope for the CORE — only its
// configuration and lifecycle are implemented here, not a bespoke wire
// protocol.
package store

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config mirrors the teacher's internal/database.Config: defaultable,
// env-overridable, and self-validating before it is used to open a pool.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// DefaultConfig returns sane defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "kbcoord",
		Password:        "",
		Database:        "kbcoord",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// LoadFromEnv overlays KB_DB_* environment variables onto c, leaving any
// value whose variable is unset or malformed at its current setting.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("KB_DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("KB_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("KB_DB_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("KB_DB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("KB_DB_NAME"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("KB_DB_SSL_MODE"); v != "" {
		c.SSLMode = v
	}
}

// Validate checks that c describes a usable connection target.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections must be non-negative")
	}
	return nil
}

// DSN renders the libpq-style connection string both pgx/v5/stdlib and
// lib/pq accept.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}
