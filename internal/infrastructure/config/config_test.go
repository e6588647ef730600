package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors t.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cartsync", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "cartsync.db", cfg.Storage.Path)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.MutationTimeout)
	assert.Equal(t, 30*time.Second, cfg.Backend.SubmitTimeout)
	assert.Empty(t, cfg.Redis.Host)
	assert.Equal(t, 5, cfg.Replay.MaxRetries)
	assert.Equal(t, 7*24*time.Hour, cfg.Replay.CleanupRetention)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[app]
env = "staging"
port = "9090"

[backend]
base_url = "https://api.staging.example.com"
mutation_timeout = "2s"
submit_timeout = "20s"

[replay]
max_retries = 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Env)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "https://api.staging.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Backend.MutationTimeout)
	assert.Equal(t, 20*time.Second, cfg.Backend.SubmitTimeout)
	assert.Equal(t, 3, cfg.Replay.MaxRetries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[backend]
base_url = "https://from-file.example.com"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))
	chdir(t, dir)
	t.Setenv("CARTSYNC_BACKEND_BASE_URL", "https://from-env.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", cfg.Backend.BaseURL)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, base().validate())
	})

	t.Run("relative base url rejected", func(t *testing.T) {
		cfg := base()
		cfg.Backend.BaseURL = "/not-absolute"
		assert.Error(t, cfg.validate())
	})

	t.Run("submit timeout below mutation timeout rejected", func(t *testing.T) {
		cfg := base()
		cfg.Backend.MutationTimeout = 10 * time.Second
		cfg.Backend.SubmitTimeout = 5 * time.Second
		assert.Error(t, cfg.validate())
	})

	t.Run("negative max retries rejected", func(t *testing.T) {
		cfg := base()
		cfg.Replay.MaxRetries = -1
		assert.Error(t, cfg.validate())
	})

	t.Run("production requires https", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		cfg.Backend.BaseURL = "http://api.example.com"
		assert.Error(t, cfg.validate())
	})

	t.Run("production rejects in-memory storage", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		cfg.Backend.BaseURL = "https://api.example.com"
		cfg.Storage.Path = ":memory:"
		assert.Error(t, cfg.validate())
	})

	t.Run("production with https and file storage accepted", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		cfg.Backend.BaseURL = "https://api.example.com"
		assert.NoError(t, cfg.validate())
	})
}
