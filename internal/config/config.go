package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process settings. Values come from an optional YAML file and
// are overridden by environment variables.
type Config struct {
	Port            string        `yaml:"port"`
	GeminiAPIKey    string        `yaml:"gemini_api_key"`
	GeminiModel     string        `yaml:"gemini_model"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	MaxRequestBytes int64         `yaml:"max_request_bytes"`
	CORSOrigins     []string      `yaml:"cors_allow_origins"`
	LogLevel        string        `yaml:"log_level"`
}

// Built-in settings used when neither the config file nor the environment
// sets a value.
const (
	DefaultPort            = "8000"
	DefaultModel           = "gemini-2.0-flash-exp-image-generation"
	DefaultProviderTimeout = 120 * time.Second
	DefaultMaxRequestBytes = 32 << 20
)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:            DefaultPort,
		GeminiModel:     DefaultModel,
		ProviderTimeout: DefaultProviderTimeout,
		MaxRequestBytes: DefaultMaxRequestBytes,
		CORSOrigins:     []string{"*"},
		LogLevel:        "info",
	}
}

// Load reads path (if not empty) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
		slog.Debug("Loaded config file", "path", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.GeminiModel = v
	}
	if v := os.Getenv("PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("failed to parse PROVIDER_TIMEOUT: %w", err)
		}
		c.ProviderTimeout = d
	}
	if v := os.Getenv("MAX_REQUEST_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse MAX_REQUEST_BYTES: %w", err)
		}
		c.MaxRequestBytes = n
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate rejects unusable settings. A missing API key is allowed; the
// service starts and reports itself unconfigured.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.GeminiModel == "" {
		return fmt.Errorf("gemini model must not be empty")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %s", c.ProviderTimeout)
	}
	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("max request bytes must be positive, got %d", c.MaxRequestBytes)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
