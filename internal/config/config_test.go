package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, "missing file falls back to defaults")

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, "ws://localhost:8000/ws/alerts", cfg.API.WSURL)
	assert.Equal(t, 5*time.Minute, cfg.Engine.RefreshInterval)
	assert.Equal(t, time.Second, cfg.Engine.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Engine.BackoffMax)
	assert.Equal(t, ":9090", cfg.Listen)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://platform.example.com
  username: operator
engine:
  refresh_interval: 2m
listen: ":8099"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://platform.example.com", cfg.API.BaseURL)
	assert.Equal(t, "operator", cfg.API.Username)
	assert.Equal(t, 2*time.Minute, cfg.Engine.RefreshInterval)
	assert.Equal(t, ":8099", cfg.Listen)
	assert.Equal(t, "ws://localhost:8000/ws/alerts", cfg.API.WSURL, "unset keys keep defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: http://from-file\n"), 0o644))

	t.Setenv("CONSOLE_API_URL", "http://from-env")
	t.Setenv("CONSOLE_PASSWORD", "s3cret")
	t.Setenv("CONSOLE_REFRESH_INTERVAL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env", cfg.API.BaseURL, "env wins over file")
	assert.Equal(t, "s3cret", cfg.API.Password)
	assert.Equal(t, 90*time.Second, cfg.Engine.RefreshInterval)
}

func TestLoad_RefreshFloor(t *testing.T) {
	t.Setenv("CONSOLE_REFRESH_INTERVAL", "1s")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Engine.RefreshInterval, "sub-10s intervals are clamped")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
