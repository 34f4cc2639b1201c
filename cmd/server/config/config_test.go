package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, 10, cfg.Database.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Auth.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DOCFUSION_SERVER_PORT", "9090")
	t.Setenv("DOCFUSION_DATABASE_MAX_SIZE", "25")
	t.Setenv("DOCFUSION_CACHE_TTL", "1m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Database.MaxSize)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
database:
  dsn: postgres://db:5432/test
cache:
  max_entries: 50
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://db:5432/test", cfg.Database.DSN)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Database.DSN = ""
	assert.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Auth.Enabled = true
	assert.Error(t, cfg.Validate(), "auth without a key or secret must fail")
	cfg.Auth.APIKey = "k"
	assert.NoError(t, cfg.Validate())
}
