package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, ProviderMemory, cfg.Identity.Provider)
	assert.Equal(t, 3, cfg.WriteRetries)
}

func TestLoadFileAndEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"apiUrl":"http://api.local:9000/","logLevel":"warn"}`), 0600))

	t.Setenv("SHAREDNOTES_LOG_LEVEL", "debug")
	t.Setenv("SHAREDNOTES_WRITE_RETRIES", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://api.local:9000", cfg.APIURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.WriteRetries)
	assert.Equal(t, path, cfg.Path())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("SHAREDNOTES_IDENTITY_PROVIDER=cognito\nCOGNITO_REGION=eu-central-1\nCOGNITO_CLIENT_ID=abc\n"), 0600))

	// Registered so the variables godotenv sets are restored afterwards.
	t.Setenv("SHAREDNOTES_IDENTITY_PROVIDER", "")
	t.Setenv("COGNITO_REGION", "")
	t.Setenv("COGNITO_CLIENT_ID", "")
	os.Unsetenv("SHAREDNOTES_IDENTITY_PROVIDER")
	os.Unsetenv("COGNITO_REGION")
	os.Unsetenv("COGNITO_CLIENT_ID")

	cfg, err := Load(filepath.Join(dir, "config.json"), envFile)
	require.NoError(t, err)
	assert.Equal(t, ProviderCognito, cfg.Identity.Provider)
	assert.Equal(t, "eu-central-1", cfg.Identity.Region)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.APIURL = "not a url"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Identity.Provider = ProviderCognito
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Identity.Provider = "ldap"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.WriteRetries = 0
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.LogLevel = "error"
	cfg.Identity.ClientSecret = "do-not-write"
	require.NoError(t, cfg.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "do-not-write")

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", reloaded.LogLevel)
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"logLevel":"info"}`), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zerolog.Nop(), func(c *Config) { changes <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"logLevel":"debug"}`), 0600))

	select {
	case c := <-changes:
		assert.Equal(t, "debug", c.LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	require.NoError(t, <-done)
}
