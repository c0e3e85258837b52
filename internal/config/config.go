// Package config loads runtime-wide defaults for the client facade and the
// demonstration CLI: which storage adapter to prefer, where the persistent
// database file lives, the bbolt busy-timeout, and the log level. Layering
// mirrors the teacher's own config.yaml-under-environment-variables
// precedence (internal/config/local_config.go): compiled-in defaults, then
// an optional mistfall.yaml, then MISTFALL_*-prefixed environment variables.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the on-disk config file name, read from the directory
// passed to Load.
const ConfigFileName = "mistfall.yaml"

// Config holds the runtime-wide settings resolved at client construction time.
type Config struct {
	Adapter      string        `yaml:"adapter"`
	DatabasePath string        `yaml:"database_path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	LogLevel     string        `yaml:"log_level"`
}

// DefaultConfig returns the compiled-in defaults, before any file or
// environment override is applied.
func DefaultConfig() *Config {
	return &Config{
		Adapter:      "auto",
		DatabasePath: "mistfall.db",
		BusyTimeout:  5 * time.Second,
		LogLevel:     "info",
	}
}

// ConfigPath returns the path Load reads from within dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

// Load resolves a Config for dir: start from DefaultConfig, layer in
// mistfall.yaml if present, then apply MISTFALL_* environment overrides.
// A missing config file is not an error; Load returns a nil Config only
// together with a non-nil error (an unreadable or unparsable file).
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath(dir)) // #nosec G304 - dir is caller-controlled
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes cfg to dir's mistfall.yaml, creating the directory if needed.
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(dir), data, 0600)
}

// applyEnv overrides cfg's fields with any MISTFALL_* environment variable
// that is set, taking precedence over both compiled-in defaults and the
// config file — the teacher's own BEADS_*-over-config.yaml precedence rule
// (internal/config/local_config.go's LoadLocalConfigWithEnv).
func (c *Config) applyEnv() {
	if v := os.Getenv("MISTFALL_ADAPTER"); v != "" {
		c.Adapter = v
	}
	if v := os.Getenv("MISTFALL_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("MISTFALL_BUSY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.BusyTimeout = d
		}
	}
	if v := os.Getenv("MISTFALL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// IsMemoryOnly reports whether the configured adapter forces the in-process
// backend rather than the persistent one.
func (c *Config) IsMemoryOnly() bool {
	return c.Adapter == "memory"
}

// SlogLevel parses LogLevel into a slog.Level, defaulting to slog.LevelInfo
// for an empty or unrecognized value.
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
