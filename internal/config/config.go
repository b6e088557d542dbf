// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.cvforge/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Backend: base URL, API key, stream timeout
//   - Rendering: observer update cadence for streaming text
//   - Logging: level and format
//   - Tracing: OTLP endpoint and service identity
//
// Security: the API key is never logged; config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidBackendURL indicates the backend base URL is malformed.
	ErrInvalidBackendURL = errors.New("invalid backend URL")

	// ErrInvalidStreamTimeout indicates the stream timeout is out of range.
	ErrInvalidStreamTimeout = errors.New("invalid stream timeout")

	// ErrInvalidUpdateInterval indicates the update interval is out of range.
	ErrInvalidUpdateInterval = errors.New("invalid update interval")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

const (
	// DefaultUpdateInterval is the observer update cadence for streaming
	// text. Roughly one repaint per frame at 60fps.
	DefaultUpdateInterval = 16 * time.Millisecond

	// MaxUpdateInterval caps the cadence so the UI never looks frozen.
	MaxUpdateInterval = time.Second

	// DefaultStreamTimeout bounds a single backend run.
	DefaultStreamTimeout = 5 * time.Minute
)

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// Backend connection
	BackendURL    string        `mapstructure:"backend_url" json:"backend_url"`
	APIKey        string        `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	StreamTimeout time.Duration `mapstructure:"stream_timeout" json:"stream_timeout"`

	// Streaming render cadence
	UpdateInterval time.Duration `mapstructure:"update_interval" json:"update_interval"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".cvforge")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail-fast: a bad config must never reach the engine.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("backend_url", "http://localhost:8080")
	viper.SetDefault("stream_timeout", DefaultStreamTimeout)
	viper.SetDefault("update_interval", DefaultUpdateInterval)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.service_name", "cvforge")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("backend_url", "CVFORGE_BACKEND_URL")
	mustBind("api_key", "CVFORGE_API_KEY")
	mustBind("log_level", "CVFORGE_LOG_LEVEL")
	mustBind("tracing.enabled", "CVFORGE_TRACING_ENABLED")
	mustBind("tracing.endpoint", "CVFORGE_TRACING_ENDPOINT")
}

// Validate performs range and format checks on the loaded configuration.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBackendURL, c.BackendURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBackendURL, u.Scheme)
	}

	if c.StreamTimeout <= 0 {
		return fmt.Errorf("%w: %v (must be positive)", ErrInvalidStreamTimeout, c.StreamTimeout)
	}

	if c.UpdateInterval <= 0 || c.UpdateInterval > MaxUpdateInterval {
		return fmt.Errorf("%w: %v (must be in (0, %v])", ErrInvalidUpdateInterval, c.UpdateInterval, MaxUpdateInterval)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - APIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
