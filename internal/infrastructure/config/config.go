package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App     AppConfig
	Log     LogConfig
	Storage StorageConfig
	Backend BackendConfig
	Redis   RedisConfig
	Replay  ReplayConfig
	HTTP    HTTPConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// StorageConfig holds the local snapshot database settings
type StorageConfig struct {
	// Path is the sqlite database file; ":memory:" keeps state in process
	Path string
}

// BackendConfig holds the marketplace backend connection settings
type BackendConfig struct {
	// BaseURL is the backend API root, e.g. https://api.zeno.example.com
	BaseURL string
	// MutationTimeout bounds cart mutation calls; they have a local
	// fallback so the bound is short
	MutationTimeout time.Duration
	// SubmitTimeout bounds order creation; longer, since aborting early
	// risks a duplicate order
	SubmitTimeout time.Duration
	// MaxResponseBytes caps how much of a backend response body is read
	MaxResponseBytes int64
}

// RedisConfig holds Redis connection settings for the shared
// idempotency store; leave Host empty to use the in-process store
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ReplayConfig holds offline replay queue settings
type ReplayConfig struct {
	MaxRetries int
	// CleanupRetention is how long replayed entries are kept before the
	// periodic sweep deletes them
	CleanupRetention time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CARTSYNC_ prefix (e.g., CARTSYNC_BACKEND_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CARTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Storage: StorageConfig{
			Path: v.GetString("storage.path"),
		},
		Backend: BackendConfig{
			BaseURL:          v.GetString("backend.base_url"),
			MutationTimeout:  v.GetDuration("backend.mutation_timeout"),
			SubmitTimeout:    v.GetDuration("backend.submit_timeout"),
			MaxResponseBytes: v.GetInt64("backend.max_response_bytes"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Replay: ReplayConfig{
			MaxRetries:       v.GetInt("replay.max_retries"),
			CleanupRetention: v.GetDuration("replay.cleanup_retention"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "cartsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "cartsync.db"
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000"
	}
	if cfg.Backend.MutationTimeout == 0 {
		cfg.Backend.MutationTimeout = 5 * time.Second
	}
	if cfg.Backend.SubmitTimeout == 0 {
		cfg.Backend.SubmitTimeout = 30 * time.Second
	}
	if cfg.Backend.MaxResponseBytes == 0 {
		cfg.Backend.MaxResponseBytes = 1 << 20 // 1MB
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Replay.MaxRetries == 0 {
		cfg.Replay.MaxRetries = 5
	}
	if cfg.Replay.CleanupRetention == 0 {
		cfg.Replay.CleanupRetention = 7 * 24 * time.Hour
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
}

// validate checks the configuration for invalid values
func (c *Config) validate() error {
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.MutationTimeout <= 0 {
		return fmt.Errorf("backend.mutation_timeout must be positive")
	}
	if c.Backend.SubmitTimeout < c.Backend.MutationTimeout {
		return fmt.Errorf("backend.submit_timeout (%s) cannot be shorter than backend.mutation_timeout (%s)",
			c.Backend.SubmitTimeout, c.Backend.MutationTimeout)
	}
	if c.Replay.MaxRetries < 0 {
		return fmt.Errorf("replay.max_retries cannot be negative")
	}

	if c.App.Env == "production" {
		if parsed.Scheme != "https" {
			return fmt.Errorf("backend.base_url must use https in production")
		}
		if c.Storage.Path == ":memory:" {
			return fmt.Errorf("storage.path cannot be :memory: in production")
		}
	}

	return nil
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsDevelopment returns true when running in the development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
