// ABOUTME: Configuration loading and parsing for authflow
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/authflow/internal/lifecycle"
)

// Default values applied when a field is left empty.
const (
	DefaultAuthTimeout        = lifecycle.DefaultAuthTimeout
	DefaultLoadContextTimeout = lifecycle.DefaultLoadContextTimeout
	DefaultInitializeTimeout  = lifecycle.DefaultInitializeTimeout
	DefaultGetSessionTimeout  = 10 * time.Second
	DefaultDedupeTTL          = time.Minute
	DefaultDedupeSize         = 1024
	DefaultLogLevel           = "warn"
	DefaultLogFormat          = "text"
)

// Config represents the complete authflow configuration
type Config struct {
	Lifecycle LifecycleConfig `yaml:"lifecycle" toml:"lifecycle"`
	Provider  ProviderConfig  `yaml:"provider" toml:"provider"`
	Journal   JournalConfig   `yaml:"journal" toml:"journal"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// LifecycleConfig holds the per-phase deadlines of the auth pipeline
type LifecycleConfig struct {
	AuthTimeout        time.Duration `yaml:"-" toml:"-"`
	LoadContextTimeout time.Duration `yaml:"-" toml:"-"`
	InitializeTimeout  time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	AuthTimeoutRaw        string `yaml:"auth_timeout" toml:"auth_timeout"`
	LoadContextTimeoutRaw string `yaml:"load_context_timeout" toml:"load_context_timeout"`
	InitializeTimeoutRaw  string `yaml:"initialize_timeout" toml:"initialize_timeout"`
}

// ProviderConfig holds auth provider adapter configuration
type ProviderConfig struct {
	GetSessionTimeout time.Duration `yaml:"-" toml:"-"`
	DedupeTTL         time.Duration `yaml:"-" toml:"-"`

	GetSessionTimeoutRaw string `yaml:"get_session_timeout" toml:"get_session_timeout"`
	DedupeTTLRaw         string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
	DedupeSize           int    `yaml:"dedupe_size" toml:"dedupe_size"`

	// JWTSecret signs demo session tokens; at least 32 bytes when set
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// JournalConfig holds the transition journal configuration
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// DefaultPath returns the config location: AUTHFLOW_CONFIG, then
// $XDG_CONFIG_HOME/authflow/config.yaml, then ~/.config/authflow/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("AUTHFLOW_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "authflow", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "authflow", "config.yaml")
}

// LifecycleTimeouts converts the lifecycle section for lifecycle.Options.
func (c *Config) LifecycleTimeouts() lifecycle.Timeouts {
	return lifecycle.Timeouts{
		Authenticating: c.Lifecycle.AuthTimeout,
		LoadContext:    c.Lifecycle.LoadContextTimeout,
		Initialize:     c.Lifecycle.InitializeTimeout,
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields are valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	durations := []struct {
		key   string
		value time.Duration
	}{
		{"lifecycle.auth_timeout", c.Lifecycle.AuthTimeout},
		{"lifecycle.load_context_timeout", c.Lifecycle.LoadContextTimeout},
		{"lifecycle.initialize_timeout", c.Lifecycle.InitializeTimeout},
		{"provider.get_session_timeout", c.Provider.GetSessionTimeout},
		{"provider.dedupe_ttl", c.Provider.DedupeTTL},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative", d.key)
		}
	}

	if c.Provider.DedupeSize < 0 {
		return fmt.Errorf("provider.dedupe_size must not be negative")
	}
	if c.Provider.JWTSecret != "" && len(c.Provider.JWTSecret) < 32 {
		return fmt.Errorf("provider.jwt_secret must be at least 32 bytes")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when journal is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "off", "none", "disabled", "error", "warn", "warning", "info", "debug":
	default:
		return fmt.Errorf("logging.level %q is not one of off, error, warn, info, debug", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"auth_timeout", cfg.Lifecycle.AuthTimeoutRaw, &cfg.Lifecycle.AuthTimeout},
		{"load_context_timeout", cfg.Lifecycle.LoadContextTimeoutRaw, &cfg.Lifecycle.LoadContextTimeout},
		{"initialize_timeout", cfg.Lifecycle.InitializeTimeoutRaw, &cfg.Lifecycle.InitializeTimeout},
		{"get_session_timeout", cfg.Provider.GetSessionTimeoutRaw, &cfg.Provider.GetSessionTimeout},
		{"dedupe_ttl", cfg.Provider.DedupeTTLRaw, &cfg.Provider.DedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.key, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// applyDefaults fills zero values. Durations that were explicitly set stay as they are.
func applyDefaults(cfg *Config) {
	if cfg.Lifecycle.AuthTimeout == 0 {
		cfg.Lifecycle.AuthTimeout = DefaultAuthTimeout
	}
	if cfg.Lifecycle.LoadContextTimeout == 0 {
		cfg.Lifecycle.LoadContextTimeout = DefaultLoadContextTimeout
	}
	if cfg.Lifecycle.InitializeTimeout == 0 {
		cfg.Lifecycle.InitializeTimeout = DefaultInitializeTimeout
	}
	if cfg.Provider.GetSessionTimeout == 0 {
		cfg.Provider.GetSessionTimeout = DefaultGetSessionTimeout
	}
	if cfg.Provider.DedupeTTL == 0 {
		cfg.Provider.DedupeTTL = DefaultDedupeTTL
	}
	if cfg.Provider.DedupeSize == 0 {
		cfg.Provider.DedupeSize = DefaultDedupeSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}
