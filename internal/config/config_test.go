// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, YAML files, environment overrides and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/buzz-go/pkg/buzz"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buzz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "oto", cfg.Backend)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, buzz.DefaultMaxStreamNodes, cfg.MaxStreamNodes)
	assert.Equal(t, 5*time.Minute, cfg.FreeInterval)
	assert.Equal(t, 2*time.Minute, cfg.IdleThreshold)
	assert.True(t, cfg.AutoEnable)
	assert.Equal(t, 1.0, cfg.Volume)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
backend: malgo
max_stream_nodes: 3
free_interval: 30s
volume: 0.5
muted: true
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "malgo", cfg.Backend)
	assert.Equal(t, 3, cfg.MaxStreamNodes)
	assert.Equal(t, 30*time.Second, cfg.FreeInterval)
	assert.Equal(t, 0.5, cfg.Volume)
	assert.True(t, cfg.Muted)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "volume: 0.5\n")
	t.Setenv("BUZZ_VOLUME", "0.25")
	t.Setenv("BUZZ_IDLE_THRESHOLD", "10m")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 0.25, cfg.Volume)
	assert.Equal(t, 10*time.Minute, cfg.IdleThreshold)
}

func TestZeroVolumeReachesEngine(t *testing.T) {
	path := writeConfig(t, "volume: 0\n")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Volume)
	assert.Equal(t, 0.0, cfg.Engine().Volume)
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BUZZ_CACHE_DIR=/tmp/buzz-cache\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("BUZZ_CACHE_DIR") })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/buzz-cache", cfg.CacheDir)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"volume too high", "volume: 2\n"},
		{"no stream nodes", "max_stream_nodes: 0\n"},
		{"negative interval", "free_interval: -1s\n"},
		{"too many channels", "channels: 6\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := &Config{
		Backend:        "null",
		SampleRate:     44100,
		Channels:       1,
		MaxStreamNodes: 4,
		FreeInterval:   time.Minute,
		IdleThreshold:  time.Second,
		AutoEnable:     false,
		Volume:         0.7,
		CacheDir:       "/var/cache/buzz",
	}

	ec := cfg.Engine()
	assert.Equal(t, "null", ec.Backend)
	assert.Equal(t, 44100, ec.SampleRate)
	assert.Equal(t, 1, ec.Channels)
	assert.Equal(t, 4, ec.MaxStreamNodes)
	assert.Equal(t, time.Minute, ec.FreeInterval)
	assert.Equal(t, time.Second, ec.IdleThreshold)
	assert.False(t, ec.AutoEnable)
	assert.Equal(t, 0.7, ec.Volume)
	assert.Equal(t, "/var/cache/buzz", ec.CacheDir)
}
