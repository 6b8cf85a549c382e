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
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", cfg.BackendURL)
	assert.Equal(t, TokenStoreFile, cfg.TokenStore)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, cfg.BackendURL, cfg.AuthURL)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.TokenFile)
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.Social.Scopes)
	assert.False(t, cfg.Social.Enabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BACKEND_URL", "https://api.example.com/")
	t.Setenv("NEXTAUTH_URL", "https://learn.example.com")
	t.Setenv("LEARNHUB_TOKEN_STORE", "memory")
	t.Setenv("LEARNHUB_REQUEST_TIMEOUT", "5s")
	t.Setenv("LOG_DEV", "true")
	t.Setenv("LEARNHUB_TOKEN_TTL", "12h")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, "https://learn.example.com", cfg.AuthURL)
	assert.Equal(t, TokenStoreMemory, cfg.TokenStore)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Log.Dev)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEARNHUB_TOKEN_FILE=/tmp/learnhub-test-token\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LEARNHUB_TOKEN_FILE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/learnhub-test-token", cfg.TokenFile)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "learnhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: http://backend:8080\nmetrics_enabled: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080", cfg.BackendURL)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoad_RedisRequiresAddr(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEARNHUB_TOKEN_STORE", "redis")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_InvalidBackendURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BACKEND_URL", "not a url")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_NonPositiveTokenTTL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEARNHUB_TOKEN_TTL", "0s")

	_, err := Load("")
	require.Error(t, err)
}
