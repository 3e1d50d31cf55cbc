// Package config provides configuration management for TalonPulse.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid config")

// Config holds all runtime configuration for TalonPulse.
type Config struct {
	// ── HTTP ─────────────────────────────────────────────────────────────────
	ListenHost string `mapstructure:"listen_host"`
	ListenPort int    `mapstructure:"listen_port"`

	// ── Storage ──────────────────────────────────────────────────────────────
	DBPath string `mapstructure:"db_path"`

	// ── Collection ───────────────────────────────────────────────────────────
	// SampleInterval is the pause between two ticks of the scheduler.
	SampleInterval int `mapstructure:"sample_interval_seconds"`
	// CPUWindow is the blocking window used to average CPU usage.
	CPUWindow int `mapstructure:"cpu_window_ms"`
	// SampleTimeout bounds a single sampler call.
	SampleTimeout int `mapstructure:"sample_timeout_seconds"`

	// ── Security ──────────────────────────────────────────────────────────────
	// JWTSecret: HS256 signing key for dashboard session tokens.
	// Change this in production; the default is a placeholder.
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  int    `mapstructure:"token_ttl_hours"`
	// Users maps login name to password. Passwords are bcrypt-hashed in memory at startup.
	Users map[string]string `mapstructure:"users"`

	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel  string `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat string `mapstructure:"log_format"` // text | json
}

// Load reads config from file (./config.yaml or ~/.talonpulse/config.yaml)
// and falls back to defaults. Environment variables with prefix PULSE_
// override file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.talonpulse")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile reads config from an explicit path instead of the search paths.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_host", "127.0.0.1")
	v.SetDefault("listen_port", 5000)
	v.SetDefault("db_path", "metrics.db")

	v.SetDefault("sample_interval_seconds", 5)
	v.SetDefault("cpu_window_ms", 500)
	v.SetDefault("sample_timeout_seconds", 10)

	// Security defaults MUST be overridden in production via config.yaml or env vars.
	v.SetDefault("jwt_secret", "Pl5$Vq2@tR8!nW3#kM7^bH1&cZ6*")
	v.SetDefault("token_ttl_hours", 24)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

func decode(v *viper.Viper) (*Config, error) {
	// --- Environment Variables ---
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	// Not a viper default: map defaults are merged key-by-key with the file.
	if len(cfg.Users) == 0 {
		cfg.Users = map[string]string{"admin": "admin123"}
	}
	return &cfg, nil
}

// Validate checks the values the collection pipeline cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.SampleInterval <= 0:
		return fmt.Errorf("%w: sample_interval_seconds must be positive, got %d", ErrInvalid, c.SampleInterval)
	case c.CPUWindow <= 0:
		return fmt.Errorf("%w: cpu_window_ms must be positive, got %d", ErrInvalid, c.CPUWindow)
	case c.SampleTimeout <= 0:
		return fmt.Errorf("%w: sample_timeout_seconds must be positive, got %d", ErrInvalid, c.SampleTimeout)
	case c.ListenPort <= 0 || c.ListenPort > 65535:
		return fmt.Errorf("%w: listen_port out of range: %d", ErrInvalid, c.ListenPort)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path is empty", ErrInvalid)
	case len(c.Users) == 0:
		return fmt.Errorf("%w: no users configured", ErrInvalid)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.SampleInterval) * time.Second
}

func (c *Config) Window() time.Duration {
	return time.Duration(c.CPUWindow) * time.Millisecond
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.SampleTimeout) * time.Second
}

func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.TokenTTL) * time.Hour
}
