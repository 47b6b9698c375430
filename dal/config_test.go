package dal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "folio", cfg.User)
	assert.Equal(t, "folio", cfg.Database)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"host: db.internal\nport: 5433\npassword: hunter2\nconn_max_lifetime: 300\n",
	), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, 5*time.Minute, cfg.Lifetime())
	// Defaults survive for keys the file does not set.
	assert.Equal(t, "folio", cfg.User)
	assert.Equal(t, 10, cfg.MaxOpenConns)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: from-file\n"), 0o600))

	t.Setenv("FOLIO_HOST", "from-env")
	t.Setenv("FOLIO_MAX_OPEN_CONNS", "42")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Host)
	assert.Equal(t, 42, cfg.MaxOpenConns)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		Host: "localhost", Port: 5432, User: "folio", Database: "folio", SSLMode: "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=folio dbname=folio sslmode=disable", cfg.DSN())

	cfg.Password = "hunter2"
	assert.Equal(t, "host=localhost port=5432 user=folio dbname=folio sslmode=disable password=hunter2", cfg.DSN())
}
