// Package config loads lethe configuration from a YAML file, with LETHE_*
// environment variables taking precedence over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lazypower/lethe/internal/retention"
)

// Config holds all lethe configuration.
type Config struct {
	Server     ServerConfig                   `yaml:"server"`
	Database   DatabaseConfig                 `yaml:"database"`
	Forgetting retention.ForgettingParameters `yaml:"forgetting"`
	Analysis   AnalysisConfig                 `yaml:"analysis"`
	Signal     SignalConfig                   `yaml:"signal"`
}

type ServerConfig struct {
	Bind      string          `yaml:"bind"`
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds API requests per client IP. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AnalysisConfig struct {
	Interval            time.Duration `yaml:"interval"` // 0 disables the background timer
	Workers             int           `yaml:"workers"`
	FrequencyWindowDays int           `yaml:"frequency_window_days"`
	FrequencySaturation int           `yaml:"frequency_saturation"`
}

// FrequencyWindow returns the interaction counting window as a duration.
func (a AnalysisConfig) FrequencyWindow() time.Duration {
	return time.Duration(a.FrequencyWindowDays) * 24 * time.Hour
}

type SignalConfig struct {
	Provider string        `yaml:"provider"` // "store", "http", "none"
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	Breaker  BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
	HalfOpenMax uint32        `yaml:"half_open_max"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
			RateLimit: RateLimitConfig{
				RPS:   20,
				Burst: 40,
			},
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Forgetting: retention.DefaultParameters(),
		Analysis: AnalysisConfig{
			Interval:            time.Hour,
			Workers:             4,
			FrequencyWindowDays: 30,
			FrequencySaturation: 10,
		},
		Signal: SignalConfig{
			Provider: "store",
			Timeout:  5 * time.Second,
			Breaker: BreakerConfig{
				MaxFailures: 3,
				OpenTimeout: 30 * time.Second,
				HalfOpenMax: 2,
			},
		},
	}
}

// DefaultPath returns the default config file path: ~/.lethe/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".lethe", "config.yaml"), nil
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted away.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if err := c.Forgetting.Validate(); err != nil {
		return fmt.Errorf("config: forgetting: %w", err)
	}
	if c.Analysis.Interval < 0 {
		return fmt.Errorf("config: analysis.interval must not be negative")
	}
	if c.Analysis.Workers < 1 {
		c.Analysis.Workers = 1
	}
	if c.Analysis.FrequencyWindowDays < 1 {
		return fmt.Errorf("config: analysis.frequency_window_days must be at least 1")
	}
	if c.Analysis.FrequencySaturation < 1 {
		return fmt.Errorf("config: analysis.frequency_saturation must be at least 1")
	}
	switch c.Signal.Provider {
	case "store", "none":
	case "http":
		if c.Signal.URL == "" {
			return fmt.Errorf("config: signal.url required for the http provider")
		}
	default:
		return fmt.Errorf("config: unknown signal provider %q", c.Signal.Provider)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

func applyEnv(c *Config) {
	c.Server.Bind = getEnv("LETHE_BIND", c.Server.Bind)
	c.Server.Port = getEnvInt("LETHE_PORT", c.Server.Port)
	c.Server.RateLimit.RPS = getEnvFloat("LETHE_RATE_LIMIT_RPS", c.Server.RateLimit.RPS)
	c.Server.RateLimit.Burst = getEnvInt("LETHE_RATE_LIMIT_BURST", c.Server.RateLimit.Burst)
	c.Database.Path = getEnv("LETHE_DB_PATH", c.Database.Path)

	if v := os.Getenv("LETHE_STRATEGY"); v != "" {
		if s, err := retention.ParseStrategy(v); err == nil {
			c.Forgetting.Strategy = s
		}
	}
	c.Forgetting.DecayRate = getEnvFloat("LETHE_DECAY_RATE", c.Forgetting.DecayRate)
	c.Forgetting.ForgettingThreshold = getEnvFloat("LETHE_FORGETTING_THRESHOLD", c.Forgetting.ForgettingThreshold)
	c.Forgetting.MinimumRetentionScore = getEnvFloat("LETHE_MINIMUM_RETENTION_SCORE", c.Forgetting.MinimumRetentionScore)
	c.Forgetting.ProtectionPeriodDays = getEnvInt("LETHE_PROTECTION_PERIOD_DAYS", c.Forgetting.ProtectionPeriodDays)
	c.Forgetting.MaxForgottenNodes = getEnvInt("LETHE_MAX_FORGOTTEN_NODES", c.Forgetting.MaxForgottenNodes)
	c.Forgetting.EnableAutoForgetting = getEnvBool("LETHE_AUTO_FORGET", c.Forgetting.EnableAutoForgetting)

	c.Analysis.Interval = getEnvDuration("LETHE_ANALYSIS_INTERVAL", c.Analysis.Interval)
	c.Analysis.Workers = getEnvInt("LETHE_ANALYSIS_WORKERS", c.Analysis.Workers)

	c.Signal.Provider = getEnv("LETHE_SIGNAL_PROVIDER", c.Signal.Provider)
	c.Signal.URL = getEnv("LETHE_SIGNAL_URL", c.Signal.URL)
	c.Signal.Timeout = getEnvDuration("LETHE_SIGNAL_TIMEOUT", c.Signal.Timeout)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns defaultValue when the variable is unset or unparseable.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}
