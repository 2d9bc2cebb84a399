// Package config loads engine configuration from the environment or an
// optional YAML file, the same two-source pattern the CLI's Neo4j-derived
// predecessor used (environment first, since container deployments set
// those; a config file for anything checked into source control).
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment Variables:
//
//   - TRIEDB_DATA_DIR: database directory (default "./data")
//   - TRIEDB_DEVICE: device name for the per-device head file (default: hostname)
//   - TRIEDB_SNAPSHOT_CACHE_SIZE: in-memory snapshot LRU capacity (default 256)
//   - TRIEDB_SNAPSHOT_DISK_CACHE_ENABLED: enable the Badger-backed disk tier
//   - TRIEDB_SNAPSHOT_DISK_CACHE_DIR: directory for the disk tier (default "<data dir>/.snapshots")
//   - TRIEDB_SYNC_WRITES: fsync the disk cache tier after every write
//   - TRIEDB_SYNC_MODE: head-file commit barrier mode, "immediate" or "batch" (default "immediate")
//   - TRIEDB_LOG_LEVEL: log verbosity name (default "info")
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds engine configuration, however it was loaded.
type Config struct {
	// DataDir is the database directory passed to store.Connect.
	DataDir string `yaml:"data_dir"`

	// Device overrides the per-device head file name. Empty means "use
	// the local hostname", store.Connect's own default.
	Device string `yaml:"device"`

	// SnapshotCacheSize bounds the in-memory snapshot LRU's entry count.
	SnapshotCacheSize int `yaml:"snapshot_cache_size"`

	// SnapshotDiskCacheEnabled turns on the Badger-backed disk tier
	// beneath the in-memory LRU.
	SnapshotDiskCacheEnabled bool `yaml:"snapshot_disk_cache_enabled"`

	// SnapshotDiskCacheDir is the Badger directory for the disk tier.
	// Empty means "<DataDir>/.snapshots".
	SnapshotDiskCacheDir string `yaml:"snapshot_disk_cache_dir"`

	// SyncWrites forces fsync after every disk-cache write. Off by
	// default: a lost cache entry on crash costs a replay, not
	// correctness.
	SyncWrites bool `yaml:"sync_writes"`

	// SyncMode controls the head-file commit barrier: "immediate"
	// fsyncs the head file on every commit before returning (the
	// default, and the only mode that guarantees head survives a crash
	// exactly at the commit it names); "batch" skips the explicit fsync
	// and relies on the OS's own writeback, trading that guarantee for
	// faster commits. Either way the commit file and parents log entry
	// are always fsynced first, so a commit is never lost, only how far
	// the recorded head might trail it after a crash.
	SyncMode string `yaml:"sync_mode"`

	// LogLevel names the minimum level the CLI and any embedding
	// application logs at: one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// LoadFromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
func LoadFromEnv() *Config {
	cfg := &Config{
		DataDir:                  getEnv("TRIEDB_DATA_DIR", "./data"),
		Device:                   getEnv("TRIEDB_DEVICE", ""),
		SnapshotCacheSize:        getEnvInt("TRIEDB_SNAPSHOT_CACHE_SIZE", 256),
		SnapshotDiskCacheEnabled: getEnvBool("TRIEDB_SNAPSHOT_DISK_CACHE_ENABLED", false),
		SnapshotDiskCacheDir:     getEnv("TRIEDB_SNAPSHOT_DISK_CACHE_DIR", ""),
		SyncWrites:               getEnvBool("TRIEDB_SYNC_WRITES", false),
		SyncMode:                 getEnv("TRIEDB_SYNC_MODE", "immediate"),
		LogLevel:                 getEnv("TRIEDB_LOG_LEVEL", "info"),
	}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML config file, applying the same defaults LoadFromEnv
// would for anything the file leaves unset. Environment variables are not
// consulted: callers that want environment overrides on top of a file
// should call LoadFromEnv first and overwrite individual fields.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.SnapshotCacheSize <= 0 {
		c.SnapshotCacheSize = 256
	}
	if c.SnapshotDiskCacheDir == "" {
		c.SnapshotDiskCacheDir = filepath.Join(c.DataDir, ".snapshots")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SyncMode == "" {
		c.SyncMode = "immediate"
	}
}

// Validate returns an error describing the first invalid field found, or
// nil if cfg is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data dir must not be empty")
	}
	if c.SnapshotCacheSize < 0 {
		return fmt.Errorf("config: snapshot cache size must not be negative: %d", c.SnapshotCacheSize)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch c.SyncMode {
	case "immediate", "batch":
	default:
		return fmt.Errorf("config: unknown sync mode %q", c.SyncMode)
	}
	return nil
}

// String returns a representation safe for logging: every field here is
// already non-sensitive, but kept for parity with the struct's own
// conventions elsewhere in this module.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, Device: %s, SnapshotCacheSize: %d, SnapshotDiskCacheEnabled: %v}",
		c.DataDir, c.Device, c.SnapshotCacheSize, c.SnapshotDiskCacheEnabled,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
