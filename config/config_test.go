package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLFeederPopulatesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("historyCapacity: 64\ndefaultTimeoutMs: 5000\nlogLevel: debug\n"), 0o600))

	cfg := DefaultHubConfig()
	require.NoError(t, Load(NewYAMLFeeder(path), &cfg))

	assert.Equal(t, 64, cfg.HistoryCapacity)
	assert.Equal(t, int64(5000), cfg.DefaultTimeoutMs)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestTOMLFeederPopulatesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.toml")
	require.NoError(t, os.WriteFile(path, []byte("history_capacity = 32\ndefault_timeout_ms = 2500\nlog_level = \"error\"\n"), 0o600))

	cfg := DefaultHubConfig()
	require.NoError(t, Load(NewTOMLFeeder(path), &cfg))

	assert.Equal(t, 32, cfg.HistoryCapacity)
	assert.Equal(t, int64(2500), cfg.DefaultTimeoutMs)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadWithNilFeederLeavesConfigUnchanged(t *testing.T) {
	cfg := DefaultHubConfig()
	require.NoError(t, Load(nil, &cfg))
	assert.Equal(t, DefaultHubConfig(), cfg)
}
