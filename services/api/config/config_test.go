package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range []string{"DATABASE_URL", "DB_SCHEMA", "PORT", "API_PORT", "API_DEFAULT_LIMIT",
		"API_MAX_UPLOAD_MB", "IMPORT_TIMEOUT", "LOG_LEVEL", "API_BEARER_TOKEN"} {
		t.Setenv(k, kv[k])
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, map[string]string{"DATABASE_URL": "sqlite://resa2.db"})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "resa2", cfg.Schema)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, 200, cfg.DefaultLimit)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 5*time.Minute, cfg.ImportTimeout)
	assert.Empty(t, cfg.BearerToken)
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL":      "postgres://resa2",
		"API_PORT":          "9090",
		"API_MAX_UPLOAD_MB": "5",
		"API_BEARER_TOKEN":  "secret",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr())
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes())
	assert.Equal(t, "secret", cfg.BearerToken)
}

func TestLoadErrors(t *testing.T) {
	setEnv(t, nil)
	_, err := Load()
	assert.EqualError(t, err, "DATABASE_URL is required")

	setEnv(t, map[string]string{"DATABASE_URL": "x", "PORT": "-1"})
	_, err = Load()
	assert.EqualError(t, err, "invalid PORT: -1")

	setEnv(t, map[string]string{"DATABASE_URL": "x", "IMPORT_TIMEOUT": "later"})
	_, err = Load()
	assert.EqualError(t, err, "invalid IMPORT_TIMEOUT: later")
}
