package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "starling", cfg.Name)
	assert.Equal(t, 8192, cfg.Heap.GCThreshold)
	assert.False(t, cfg.Features.Float16Array)
	assert.False(t, cfg.Logging.DebugMode)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Heap.GCThreshold, cfg.Heap.GCThreshold)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starling.yaml")
	body := []byte("heap:\n  gc_threshold: 128\n  stress_gc: true\nfeatures:\n  float16array: true\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Heap.GCThreshold)
	assert.True(t, cfg.Heap.StressGC)
	assert.True(t, cfg.Features.Float16Array)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starling.yaml")
	require.NoError(t, os.WriteFile(path, []byte("heap:\n  gc_threshold: 128\n"), 0o644))

	t.Setenv("STARLING_GC_THRESHOLD", "4096")
	t.Setenv("STARLING_DEBUG", "true")
	t.Setenv("STARLING_FEATURE_FLOAT16", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Heap.GCThreshold)
	assert.True(t, cfg.Logging.DebugMode)
	assert.True(t, cfg.Features.Float16Array)
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starling.yaml")
	cfg := DefaultConfig()
	cfg.Heap.GCThreshold = 999
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 999, loaded.Heap.GCThreshold)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "starling.yaml")
	require.NoError(t, os.WriteFile(path, []byte("heap:\n  gc_threshold: 10\n"), 0o644))

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(c *Config) { reloaded <- c }, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("heap:\n  gc_threshold: 20\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 20, cfg.Heap.GCThreshold)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not deliver a reload")
	}
}
