package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 120*time.Second, cfg.Inventory.HoldTTL.Duration)
	assert.Equal(t, 10*time.Second, cfg.Cache.AvailableStockTTL.Duration)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.BaseDelay.Duration)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval.Duration)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9999"
database:
  driver: mysql
  dsn: "user:pass@tcp(localhost:3306)/surgecart?parseTime=true"
  pool:
    max_open_conns: 50
inventory:
  hold_ttl: 90s
cache:
  backend: none
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Database.Pool.MaxOpenConns)
	assert.Equal(t, 90*time.Second, cfg.Inventory.HoldTTL.Duration)
	assert.Equal(t, "none", cfg.Cache.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SURGECART_SERVER_ADDRESS", ":7070")
	t.Setenv("SURGECART_DB_DRIVER", "postgres")
	t.Setenv("SURGECART_DB_DSN", "postgres://localhost/surgecart?sslmode=disable")
	t.Setenv("SURGECART_HOLD_TTL", "45s")
	t.Setenv("SURGECART_SWEEPER_ENABLED", "false")

	path := writeConfig(t, `
database:
  driver: memory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 45*time.Second, cfg.Inventory.HoldTTL.Duration)
	assert.False(t, cfg.Sweeper.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "database:\n  driver: sqlite\n"},
		{"sql driver without dsn", "database:\n  driver: postgres\n"},
		{"unknown cache backend", "database:\n  driver: memory\ncache:\n  backend: redis\n"},
		{"mongodb without url", "database:\n  driver: memory\ncache:\n  backend: mongodb\n"},
		{"zero hold ttl", "database:\n  driver: memory\ninventory:\n  hold_ttl: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
inventory:
  hold_ttl: 120
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.Inventory.HoldTTL.Duration, "bare numbers parse as seconds")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
