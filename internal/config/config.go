// Package config provides configuration for the relay service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped to config keys.
const EnvPrefix = "RELAY_"

// ConfigFileEnvVar names an optional YAML file layered between defaults and env.
const ConfigFileEnvVar = "RELAY_CONFIG_FILE"

// Config holds the relay configuration.
type Config struct {
	// Server settings
	ListenAddr   string `koanf:"listen_addr"`   // External WebSocket listener
	InternalAddr string `koanf:"internal_addr"` // Internal HTTP for /health, /metrics, history

	// WebSocket settings
	PingInterval   time.Duration `koanf:"ping_interval"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	SendBufferSize int           `koanf:"send_buffer_size"`
	AllowedOrigins []string      `koanf:"allowed_origins"`

	// Per-connection inbound limit in events per second. Zero disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:      ":4000",
		InternalAddr:    ":4001",
		PingInterval:    30 * time.Second,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		MaxMessageSize:  65536,
		SendBufferSize:  256,
		RateLimit:       0,
		RateBurst:       20,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// RELAY_* environment variables, in increasing order of precedence.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigFileEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env values arrive as strings; origins are comma separated.
	if raw, ok := k.Get("allowed_origins").(string); ok {
		if err := k.Set("allowed_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("failed to set allowed_origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can run a relay.
func (c *Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.InternalAddr != "" && c.InternalAddr == c.ListenAddr {
		errs = append(errs, errors.New("internal_addr must differ from listen_addr"))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("max_message_size must be positive"))
	}
	if c.SendBufferSize <= 0 {
		errs = append(errs, errors.New("send_buffer_size must be positive"))
	}
	if c.PingInterval <= 0 || c.ReadTimeout <= c.PingInterval {
		errs = append(errs, errors.New("read_timeout must exceed a positive ping_interval"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		errs = append(errs, errors.New("rate_burst must be positive when rate_limit is set"))
	}
	return errors.Join(errs...)
}

// OriginAllowed reports whether a WebSocket upgrade from origin is accepted.
// An empty allow-list accepts any origin. Requests without an Origin header
// come from non-browser clients and are always accepted.
func (c *Config) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// envKey maps RELAY_LISTEN_ADDR to listen_addr.
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
