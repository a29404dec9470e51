// CLAUDE:SUMMARY Defines surgeon config structs, parses YAML with defaults and applies SURGEON_* environment overrides.
// Package config handles surgeon configuration from YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level surgeon configuration.
type Config struct {
	DBPath       string      `yaml:"db_path"`
	Listen       string      `yaml:"listen"`
	LogLevel     string      `yaml:"log_level"` // debug | info | warn | error
	Audit        *bool       `yaml:"audit"`
	FullDocument bool        `yaml:"full_document"`
	Sanitize     bool        `yaml:"sanitize"`
	Fetch        FetchConfig `yaml:"fetch"`
}

// FetchConfig controls page acquisition for imports.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Browser   bool          `yaml:"browser"`    // escalate SPA shells to headless Chrome
	RemoteURL string        `yaml:"remote_url"` // DevTools websocket; empty = launch locally

	// AllowPrivate lets imports reach loopback and private-range hosts.
	AllowPrivate bool `yaml:"allow_private"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file, then applies environment
// overrides and defaults. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AuditEnabled reports whether sessions record audit trails. Default: true
// for the service, since rollback over HTTP needs the trail.
func (c *Config) AuditEnabled() bool {
	return c.Audit == nil || *c.Audit
}

// Validate checks values the defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Fetch.Timeout < 0 {
		return errors.New("config: fetch.timeout must not be negative")
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("SURGEON_DB"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup("SURGEON_LISTEN"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup("SURGEON_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "surgeon.db"
	}
	if c.Listen == "" {
		c.Listen = ":8420"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (compatible; Surgeon/1.0)"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
}
