// ABOUTME: Configuration loading and parsing for the ally chat server
// ABOUTME: YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Identity IdentityConfig `yaml:"identity"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects the tree-store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`
	// Path is the sqlite database file (sqlite backend only).
	Path string `yaml:"path"`
}

// IdentityConfig configures the user-directory resolver.
type IdentityConfig struct {
	// Mode is "http" or "static".
	Mode string `yaml:"mode"`

	// HTTP mode
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`

	// Static mode
	Users []StaticUser `yaml:"users"`
}

// StaticUser is one entry of the static identity directory.
type StaticUser struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	AccountType string `yaml:"account_type"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with development defaults: in-memory
// store, static identity directory, text logging on :8080.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Store:    StoreConfig{Backend: "memory"},
		Identity: IdentityConfig{Mode: "static", Timeout: 5 * time.Second},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded and
// duration strings are parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Identity.TimeoutRaw != "" {
		cfg.Identity.Timeout, err = time.ParseDuration(cfg.Identity.TimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing identity.timeout %q: %w", cfg.Identity.TimeoutRaw, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required fields are present and consistent.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend must be \"memory\" or \"sqlite\", got %q", c.Store.Backend)
	}

	switch c.Identity.Mode {
	case "static":
	case "http":
		if c.Identity.BaseURL == "" {
			return fmt.Errorf("identity.base_url is required for http mode")
		}
	default:
		return fmt.Errorf("identity.mode must be \"static\" or \"http\", got %q", c.Identity.Mode)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	return nil
}
