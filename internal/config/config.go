package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when no news API key is configured.
var ErrMissingAPIKey = errors.New("news_api_key is required")

// ConfigurationError marks a fatal operator-facing configuration problem.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	NewsAPIKey         string        `mapstructure:"news_api_key"`
	NewsAPIBaseURL     string        `mapstructure:"news_api_base_url"`
	NewsCountry        string        `mapstructure:"news_country"`
	NewsUserAgent      string        `mapstructure:"news_user_agent"`
	NewsTimeoutSeconds int64         `mapstructure:"news_timeout_seconds"`
	NewsTimeout        time.Duration `mapstructure:"-"`

	DebounceMs int64         `mapstructure:"debounce_ms"`
	Debounce   time.Duration `mapstructure:"-"`

	HTTPAddr       string `mapstructure:"http_addr"`
	PublishersFile string `mapstructure:"publishers_file"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.NewsAPIKey != "" {
		c.NewsAPIKey = "***"
	}
	return c
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("app_name", "samvad-news-desk")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("news_api_key", "")
	v.SetDefault("news_api_base_url", "https://newsapi.org/v2")
	v.SetDefault("news_country", "us")
	v.SetDefault("news_user_agent", "samvad-news-desk/1.0")
	v.SetDefault("news_timeout_seconds", 15)
	v.SetDefault("debounce_ms", 500)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/announced.db")
	v.SetDefault("storage_ttl_seconds", int64((5*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.NewsAPIKey = strings.TrimSpace(c.NewsAPIKey)
	if c.NewsAPIKey == "" {
		return &ConfigurationError{Key: "news_api_key", Err: ErrMissingAPIKey}
	}

	c.NewsAPIBaseURL = strings.TrimRight(strings.TrimSpace(c.NewsAPIBaseURL), "/")
	u, err := url.Parse(c.NewsAPIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Key: "news_api_base_url", Err: fmt.Errorf("must be an absolute url, got %q", c.NewsAPIBaseURL)}
	}

	c.NewsCountry = strings.ToLower(strings.TrimSpace(c.NewsCountry))
	if c.NewsCountry == "" {
		return &ConfigurationError{Key: "news_country", Err: errors.New("must not be empty")}
	}

	if c.NewsTimeoutSeconds <= 0 {
		return &ConfigurationError{Key: "news_timeout_seconds", Err: errors.New("must be positive seconds")}
	}
	c.NewsTimeout = time.Duration(c.NewsTimeoutSeconds) * time.Second

	if c.DebounceMs <= 0 {
		return &ConfigurationError{Key: "debounce_ms", Err: errors.New("must be positive milliseconds")}
	}
	c.Debounce = time.Duration(c.DebounceMs) * time.Millisecond

	if strings.TrimSpace(c.HTTPAddr) == "" {
		return &ConfigurationError{Key: "http_addr", Err: errors.New("must not be empty")}
	}

	if c.StorageTTLSeconds <= 0 {
		return &ConfigurationError{Key: "storage_ttl_seconds", Err: errors.New("must be positive seconds")}
	}
	if c.StorageCleanupSeconds <= 0 {
		return &ConfigurationError{Key: "storage_cleanup_interval_seconds", Err: errors.New("must be positive seconds")}
	}
	c.StorageTTL = time.Duration(c.StorageTTLSeconds) * time.Second
	c.StorageCleanupInterval = time.Duration(c.StorageCleanupSeconds) * time.Second

	return nil
}
