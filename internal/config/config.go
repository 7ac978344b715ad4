// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Durable store drivers.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Config is shared by the MCP server and the store daemon.
type Config struct {
	StoreSocket  string        `env:"PERSISTED_MAP_STORE_SOCK"`
	StoreDB      string        `env:"PERSISTED_MAP_STORE_DB"`
	StoreDriver  string        `env:"PERSISTED_MAP_STORE_DRIVER"    envDefault:"bolt"`
	SessionQuota int           `env:"PERSISTED_MAP_SESSION_QUOTA"   envDefault:"5242880"`
	DefaultTTL   time.Duration `env:"PERSISTED_MAP_DEFAULT_TTL"`
	MetricsAddr  string        `env:"PERSISTED_MAP_METRICS_ADDR"`
}

// LoadFromEnv parses the environment and fills path defaults under
// ~/.cache/persisted-map.
func LoadFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StoreSocket == "" {
		cfg.StoreSocket = filepath.Join(cacheDir(), "store.sock")
	}
	if cfg.StoreDB == "" {
		cfg.StoreDB = filepath.Join(cacheDir(), "store."+cfg.StoreDriver)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverBolt, DriverSQLite:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	if c.SessionQuota < 0 {
		return fmt.Errorf("config: session quota must not be negative")
	}
	return nil
}

func cacheDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "persisted-map")
}
