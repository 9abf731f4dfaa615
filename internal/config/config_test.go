package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/totescan/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.NotEmpty(t, cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, time.Second, cfg.API.RetryBaseDelay)
	assert.Equal(t, 3, cfg.Scan.MinLength)
	assert.Equal(t, 50, cfg.Scan.MaxLength)
	assert.Equal(t, 5, cfg.Scan.RateLimitMaxScans)
	assert.Equal(t, 10*time.Second, cfg.Scan.RateLimitWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan.Cooldown)
	assert.Equal(t, 300*time.Millisecond, cfg.Scan.PrefetchDebounce)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.History.MaxEntries)
	assert.Equal(t, 10, cfg.History.RecentLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr string
	}{
		{
			name:    "valid config",
			modify:  func(c *config.Config) {},
			wantErr: "",
		},
		{
			name: "missing base URL",
			modify: func(c *config.Config) {
				c.API.BaseURL = ""
			},
			wantErr: "api.base_url is required",
		},
		{
			name: "invalid log level",
			modify: func(c *config.Config) {
				c.Log.Level = "invalid"
			},
			wantErr: "invalid log level",
		},
		{
			name: "negative timeout",
			modify: func(c *config.Config) {
				c.API.Timeout = -1
			},
			wantErr: "api.timeout must be positive",
		},
		{
			name: "max below min length",
			modify: func(c *config.Config) {
				c.Scan.MaxLength = 2
			},
			wantErr: "scan.max_length (2) must not be below scan.min_length (3)",
		},
		{
			name: "zero rate limit",
			modify: func(c *config.Config) {
				c.Scan.RateLimitMaxScans = 0
			},
			wantErr: "scan.rate_limit_max_scans must be positive",
		},
		{
			name: "unknown history backend",
			modify: func(c *config.Config) {
				c.History.Backend = "redis"
			},
			wantErr: "invalid history backend: redis",
		},
		{
			name: "negative retries",
			modify: func(c *config.Config) {
				c.API.MaxRetries = -1
			},
			wantErr: "api.max_retries cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoaderEnv(t *testing.T) {
	t.Setenv("TOTESCAN_API_BASE_URL", "https://test.example.com")
	t.Setenv("TOTESCAN_API_TIMEOUT", "45s")
	t.Setenv("TOTESCAN_LOG_LEVEL", "DEBUG")
	t.Setenv("TOTESCAN_SCAN_RATE_LIMIT_MAX_SCANS", "10")
	t.Setenv("TOTESCAN_SCAN_BLACKLIST", "BAD-1, BAD-2")
	chdir(t, t.TempDir())

	loader := config.NewLoader("")
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "https://test.example.com", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Scan.RateLimitMaxScans)
	assert.Equal(t, []string{"BAD-1", "BAD-2"}, cfg.Scan.Blacklist)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoaderFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.json")

	configJSON := `{
		"api": {
			"base_url": "https://file.example.com"
		},
		"scan": {
			"default_tote": "demo-tote-1",
			"cooldown": "250ms"
		},
		"log": {
			"level": "warn",
			"format": "json"
		}
	}`

	err := os.WriteFile(configPath, []byte(configJSON), 0644)
	require.NoError(t, err)

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.API.BaseURL)
	assert.Equal(t, "demo-tote-1", cfg.Scan.DefaultTote)
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.Cooldown)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, configPath, loader.ConfigFileUsed())
}

func TestLoaderMissingFile(t *testing.T) {
	loader := config.NewLoader(filepath.Join(t.TempDir(), "nope.json"))
	_, err := loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestLoaderInvalid(t *testing.T) {
	t.Setenv("TOTESCAN_LOG_FORMAT", "xml")
	chdir(t, t.TempDir())

	_, err := config.NewLoader("").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestSaveExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "totescan.json")
	require.NoError(t, config.SaveExample(path))

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)
	defaults := config.DefaultConfig()
	assert.Equal(t, defaults.Scan.Cooldown, cfg.Scan.Cooldown)
	assert.Equal(t, defaults.Scan.MaxLength, cfg.Scan.MaxLength)
	assert.Equal(t, defaults.Cache.TTL, cfg.Cache.TTL)
}

func TestConfigEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.History.Path = filepath.Join(tmpDir, "data", "recent.json")
	cfg.Log.File = filepath.Join(tmpDir, "logs", "app.log")

	err := cfg.EnsureDirectories()
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(tmpDir, "data"))
	assert.DirExists(t, filepath.Join(tmpDir, "logs"))
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
