package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version    string           `yaml:"version"`
	Server     ServerConfig     `yaml:"server"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Database   DatabaseConfig   `yaml:"database"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Automation AutomationConfig `yaml:"automation"`
	Alerts     AlertsConfig     `yaml:"alerts"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// EncryptionConfig contains credential encryption configuration. The master
// key is normally referenced as ${RELISTR_MASTER_KEY} in the YAML so the
// secret itself never lives in the file.
type EncryptionConfig struct {
	MasterKey string `yaml:"master_key"`
}

// DatabaseConfig contains persistence configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file; ":memory:" or "" selects the
	// in-memory store.
	Path string `yaml:"path"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// DefaultRequests and DefaultWindow apply to limit types without a
	// marketplace-specific budget.
	DefaultRequests int           `yaml:"default_requests"`
	DefaultWindow   time.Duration `yaml:"default_window"`
	// PruneInterval controls how often stale counter windows are removed.
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// AutomationConfig contains browser automation configuration.
type AutomationConfig struct {
	Headless          bool          `yaml:"headless"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `yaml:"selector_timeout"`
	OutcomeTimeout    time.Duration `yaml:"outcome_timeout"`
	TypeDelayMin      time.Duration `yaml:"type_delay_min"`
	TypeDelayMax      time.Duration `yaml:"type_delay_max"`
	DebuggerURL       string        `yaml:"debugger_url"`
	UseUTLS           bool          `yaml:"use_utls"`
}

// AlertsConfig contains Telegram alert configuration.
type AlertsConfig struct {
	TelegramToken  string        `yaml:"telegram_token"`
	TelegramChatID int64         `yaml:"telegram_chat_id"`
	RatePerMinute  int           `yaml:"rate_per_minute"`
	DedupWindow    time.Duration `yaml:"dedup_window"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.HTTPPort)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Encryption.MasterKey == "" {
		return fmt.Errorf("encryption.master_key is required (set RELISTR_MASTER_KEY)")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.DefaultRequests <= 0 {
			return fmt.Errorf("rate_limit.default_requests must be positive when rate limiting is enabled")
		}
		if c.RateLimit.DefaultWindow <= 0 {
			return fmt.Errorf("rate_limit.default_window must be positive when rate limiting is enabled")
		}
	}
	if c.Automation.TypeDelayMin < 0 || c.Automation.TypeDelayMax < 0 {
		return fmt.Errorf("automation typing delays must not be negative")
	}
	if c.Automation.TypeDelayMax > 0 && c.Automation.TypeDelayMax < c.Automation.TypeDelayMin {
		return fmt.Errorf("automation.type_delay_max must not be less than type_delay_min")
	}
	return nil
}

// Default returns a configuration with sane defaults and no master key;
// callers must still supply one before Validate passes.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        8080,
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        "info",
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{
			Path: "relistr.db",
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			DefaultRequests: 100,
			DefaultWindow:   time.Minute,
			PruneInterval:   time.Hour,
		},
		Automation: AutomationConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			SelectorTimeout:   15 * time.Second,
			OutcomeTimeout:    20 * time.Second,
			TypeDelayMin:      50 * time.Millisecond,
			TypeDelayMax:      150 * time.Millisecond,
			DebuggerURL:       "http://localhost:9222",
		},
		Alerts: AlertsConfig{
			RatePerMinute: 10,
			DedupWindow:   5 * time.Minute,
		},
	}
}
