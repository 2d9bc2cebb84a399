package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 256, cfg.SnapshotCacheSize)
	assert.Equal(t, filepath.Join("./data", ".snapshots"), cfg.SnapshotDiskCacheDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "immediate", cfg.SyncMode)
}

func TestValidateRejectsUnknownSyncMode(t *testing.T) {
	cfg := &Config{DataDir: "./data", LogLevel: "info", SyncMode: "eventual"}
	assert.Error(t, cfg.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("TRIEDB_DATA_DIR", "/tmp/custom")
	t.Setenv("TRIEDB_SNAPSHOT_CACHE_SIZE", "42")
	t.Setenv("TRIEDB_SNAPSHOT_DISK_CACHE_ENABLED", "true")
	t.Setenv("TRIEDB_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/tmp/custom", cfg.DataDir)
	assert.Equal(t, 42, cfg.SnapshotCacheSize)
	assert.True(t, cfg.SnapshotDiskCacheEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRejectsNegativeCacheSize(t *testing.T) {
	cfg := &Config{DataDir: "./data", SnapshotCacheSize: -1, LogLevel: "info"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{DataDir: "./data", LogLevel: "verbose"}
	assert.Error(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triedb.yaml")
	content := "data_dir: /var/lib/triedb\nsnapshot_cache_size: 512\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/triedb", cfg.DataDir)
	assert.Equal(t, 512, cfg.SnapshotCacheSize)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
