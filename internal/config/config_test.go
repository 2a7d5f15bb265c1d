package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "portfolio.db"), cfg.DatabasePath)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 365, cfg.LookbackDays)
	assert.False(t, cfg.BackupEnabled())
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DATA_DIR", dir)
	t.Setenv("FOLIO_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FOLIO_LOOKBACK_DAYS", "30")
	t.Setenv("FOLIO_REFRESH_SCHEDULE", "0 18 * * *")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30, cfg.LookbackDays)
	assert.Equal(t, "0 18 * * *", cfg.RefreshSchedule)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DATA_DIR", dir)
	t.Setenv("FOLIO_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
}

func TestBackupEnabled(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_DATA_DIR", dir)
	t.Setenv("FOLIO_BACKUP_BUCKET", "folio-backups")
	t.Setenv("FOLIO_BACKUP_ACCESS_KEY", "key")
	t.Setenv("FOLIO_BACKUP_SECRET_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.BackupEnabled())
}
