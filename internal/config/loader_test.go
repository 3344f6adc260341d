package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
	assert.Equal(t, 60, cfg.Registry.CallTimeoutSeconds)
	assert.Equal(t, "@every 5m", cfg.Broker.SyncSchedule)
	assert.Equal(t, 18890, cfg.Gateway.Port)
}

func TestLoadMalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "registry": {"callTimeoutSeconds": 15},
  "plugins": {"dir": "/opt/plugins", "plugins": {"journal": {"enabled": true}}},
  "broker": {"servers": {"calc": {"command": "python3", "args": ["calc.py"], "autoStart": true}}}
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Registry.CallTimeoutSeconds)
	assert.Equal(t, "/opt/plugins", cfg.Plugins.Dir)
	assert.True(t, cfg.Plugins.Plugins["journal"].Enabled)
	assert.True(t, cfg.Broker.Servers["calc"].AutoStart)

	// Untouched sections keep their defaults.
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Plugins.CancelWaitSeconds)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Workspace = "/tmp/ws"
	cfg.Heartbeat.IntervalMinutes = 7
	require.NoError(t, Save(&cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(home, ".driftcove", "workspace"), cfg.WorkspacePath())
	assert.Equal(t, filepath.Join(home, ".driftcove", "plugins"), cfg.PluginsDir())

	cfg.Workspace = "/absolute/path"
	assert.Equal(t, "/absolute/path", cfg.WorkspacePath())
}
