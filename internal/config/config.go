package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Backend communication
	API APIConfig `mapstructure:"api" json:"api"`

	// Scanner input rules
	Scan ScanConfig `mapstructure:"scan" json:"scan"`

	// Tote contents cache
	Cache CacheConfig `mapstructure:"cache" json:"cache"`

	// Scan history and recent barcodes
	History HistoryConfig `mapstructure:"history" json:"history"`

	// Logging
	Log LogConfig `mapstructure:"log" json:"log"`

	// Prometheus instrumentation
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// APIConfig for server communication.
type APIConfig struct {
	BaseURL        string               `mapstructure:"base_url" json:"base_url"`
	Timeout        time.Duration        `mapstructure:"timeout" json:"timeout"`
	UserAgent      string               `mapstructure:"user_agent" json:"user_agent"`
	MaxRetries     int                  `mapstructure:"max_retries" json:"max_retries"`
	RetryBaseDelay time.Duration        `mapstructure:"retry_base_delay" json:"retry_base_delay"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" json:"circuit_breaker"`
}

// CircuitBreakerConfig guards the backend when it keeps failing.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled" json:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold" json:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout" json:"open_timeout"`
}

// ScanConfig for barcode validation and rate limiting.
type ScanConfig struct {
	MinLength         int           `mapstructure:"min_length" json:"min_length"`
	MaxLength         int           `mapstructure:"max_length" json:"max_length"`
	Blacklist         []string      `mapstructure:"blacklist" json:"blacklist"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window" json:"rate_limit_window"`
	RateLimitMaxScans int           `mapstructure:"rate_limit_max_scans" json:"rate_limit_max_scans"`
	Cooldown          time.Duration `mapstructure:"cooldown" json:"cooldown"`
	PrefetchDebounce  time.Duration `mapstructure:"prefetch_debounce" json:"prefetch_debounce"`
	CheckExistence    bool          `mapstructure:"check_existence" json:"check_existence"`
	DefaultTote       string        `mapstructure:"default_tote" json:"default_tote"`
}

// CacheConfig for the in-flight/completed fetch cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" json:"ttl"`
}

// HistoryConfig for scan history and recent barcode persistence.
type HistoryConfig struct {
	MaxEntries  int    `mapstructure:"max_entries" json:"max_entries"`
	RecentLimit int    `mapstructure:"recent_limit" json:"recent_limit"`
	Backend     string `mapstructure:"backend" json:"backend"` // json, sqlite
	Path        string `mapstructure:"path" json:"path"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
	File   string `mapstructure:"file" json:"file"`     // Log file path (empty = stderr)
	Color  bool   `mapstructure:"color" json:"color"`
}

// MetricsConfig for the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".totescan"

	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080/api",
			Timeout:        10 * time.Second,
			UserAgent:      "totescan/1.0",
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          false,
				FailureThreshold: 10,
				OpenTimeout:      30 * time.Second,
			},
		},
		Scan: ScanConfig{
			MinLength:         3,
			MaxLength:         50,
			Blacklist:         []string{},
			RateLimitWindow:   10 * time.Second,
			RateLimitMaxScans: 5,
			Cooldown:          500 * time.Millisecond,
			PrefetchDebounce:  300 * time.Millisecond,
			DefaultTote:       "demo-tote-1",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		History: HistoryConfig{
			MaxEntries:  50,
			RecentLimit: 10,
			Backend:     "json",
			Path:        filepath.Join(dataDir, "recent"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries cannot be negative")
	}

	if c.API.RetryBaseDelay <= 0 {
		return errors.New("api.retry_base_delay must be positive")
	}

	if c.Scan.MinLength < 1 {
		return errors.New("scan.min_length must be at least 1")
	}

	if c.Scan.MaxLength < c.Scan.MinLength {
		return fmt.Errorf("scan.max_length (%d) must not be below scan.min_length (%d)",
			c.Scan.MaxLength, c.Scan.MinLength)
	}

	if c.Scan.RateLimitMaxScans <= 0 {
		return errors.New("scan.rate_limit_max_scans must be positive")
	}

	if c.Scan.RateLimitWindow <= 0 {
		return errors.New("scan.rate_limit_window must be positive")
	}

	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}

	if c.History.MaxEntries <= 0 {
		return errors.New("history.max_entries must be positive")
	}

	validBackends := map[string]bool{"json": true, "sqlite": true}
	if !validBackends[c.History.Backend] {
		return fmt.Errorf("invalid history backend: %s", c.History.Backend)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{}

	if c.History.Path != "" {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
