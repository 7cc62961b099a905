// Package config provides configuration loading for the article analyzer.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spherical/article-analyzer/internal/domain"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all configuration for the analyzer.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Output        OutputConfig        `yaml:"output"`
	Cache         CacheConfig         `yaml:"cache"`
	History       HistoryConfig       `yaml:"history"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LLMConfig holds chat-completions settings.
type LLMConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Stream     bool          `yaml:"stream"`
}

// CatalogConfig points at an optional step catalog file.
type CatalogConfig struct {
	Path string `yaml:"path"` // empty uses the built-in steps
}

// OutputConfig holds report output settings.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig holds completion cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.ConfigError("read config file", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ConfigError("parse config file", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-2024-08-06",
			MaxTokens:  1024,
			Timeout:    120 * time.Second,
			MaxRetries: 0,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Cache: CacheConfig{
			Driver:     CacheNone,
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "aa:",
			},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "article-analyzer.db",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8090,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   15 * time.Minute,
			RequestTimeout: 15 * time.Minute,
			MaxUploadBytes: 100 << 20,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return domain.ConfigError("llm.model must not be empty", nil)
	}

	if c.LLM.MaxTokens < 1 {
		return domain.ConfigError(fmt.Sprintf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens), nil)
	}

	if c.LLM.Timeout <= 0 {
		return domain.ConfigError(fmt.Sprintf("llm.timeout must be positive, got %s", c.LLM.Timeout), nil)
	}

	if c.LLM.MaxRetries < 0 {
		return domain.ConfigError(fmt.Sprintf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries), nil)
	}

	switch c.Cache.Driver {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return domain.ConfigError(fmt.Sprintf("invalid cache driver: %s", c.Cache.Driver), nil)
	}

	if c.History.Enabled && c.History.Path == "" {
		return domain.ConfigError("history.path must be set when history is enabled", nil)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return domain.ConfigError(fmt.Sprintf("invalid server port: %d", c.Server.Port), nil)
	}

	switch strings.ToLower(c.Observability.LogFormat) {
	case "json", "console":
	default:
		return domain.ConfigError(fmt.Sprintf("invalid log format: %s", c.Observability.LogFormat), nil)
	}

	return nil
}

// RequireAPIKey fails when no API key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return domain.ConfigError("API key not configured: set OPENAI_API_KEY or llm.api_key", nil)
	}
	return nil
}

// ServerAddr returns the listen address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigError(fmt.Sprintf("invalid MAX_TOKENS %q", v), err)
		}
		cfg.LLM.MaxTokens = n
	}

	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return domain.ConfigError(fmt.Sprintf("invalid LLM_TIMEOUT %q", v), err)
		}
		cfg.LLM.Timeout = d
	}

	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = CacheRedis
		cfg.Cache.Redis.URL = v
	}

	if v := os.Getenv("HISTORY_DB"); v != "" {
		cfg.History.Path = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigError(fmt.Sprintf("invalid SERVER_PORT %q", v), err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}
