// Package config reads the process environment. Nothing outside cmd/ should
// call it.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type StorageBackend string

const (
	BackendDynamoDB StorageBackend = "dynamodb"
	BackendSQLite   StorageBackend = "sqlite"
	BackendMemory   StorageBackend = "memory"
)

type Config struct {
	// Storage
	StorageBackend StorageBackend `env:"STORAGE_BACKEND" envDefault:"dynamodb"`
	StateTable     string         `env:"STATE_TABLE"`
	// StateTTL expires profile data in DynamoDB; accounts never expire.
	StateTTL       time.Duration  `env:"STATE_TTL"`
	SQLitePath     string         `env:"SQLITE_PATH" envDefault:"data/symptomai.db"`

	// Analysis backend
	AnalysisURL     string        `env:"ANALYSIS_URL" envDefault:"http://localhost:5000"`
	AnalysisTimeout time.Duration `env:"ANALYSIS_TIMEOUT"`
	ParamPrefix     string        `env:"PARAM_PREFIX"`

	// Local server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment and checks the settings that depend on each
// other.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendDynamoDB:
		if c.StateTable == "" {
			return fmt.Errorf("config: STATE_TABLE is required for the %s backend", c.StorageBackend)
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for the %s backend", c.StorageBackend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.AnalysisURL == "" {
		return fmt.Errorf("config: ANALYSIS_URL must not be empty")
	}
	if c.StateTTL < 0 || c.AnalysisTimeout < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto slog; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
