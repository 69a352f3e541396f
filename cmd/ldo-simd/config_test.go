package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithNoPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldo-simd.yaml")
	yaml := "num_ranks: 8\nmsg_size: 128\nmetrics_addr: \":9999\"\ndb_path: \"/tmp/audit.db\"\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.NumRanks)
	assert.Equal(t, uint32(128), cfg.MsgSize)
	assert.Equal(t, ":9999", cfg.MetricsAddr)
	assert.Equal(t, "/tmp/audit.db", cfg.DBPath)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_ranks: [this is not an int"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
