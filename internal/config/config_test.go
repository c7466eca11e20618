package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Planner.Candidates, cfg.Planner.Candidates)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artisan.yaml")
	body := `
log_level: debug
planner:
  candidates: 7
cache:
  max_bytes: 1048576
  ttl: 1h30m
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Planner.Candidates)
	assert.Equal(t, int64(1048576), cfg.Cache.MaxBytes)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, DefaultConfig().Cache.Dir, cfg.Cache.Dir, "unset fields keep their default")
}

func TestLoadRejectsMalformedTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artisan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: not-a-duration\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artisan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	t.Setenv("ARTISAN_LOG_LEVEL", "warn")
	t.Setenv("ARTISAN_CACHE_DIR", "/tmp/custom-cache")
	t.Setenv("ARTISAN_MAX_WORKERS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/tmp/custom-cache", cfg.Cache.Dir)
	assert.Equal(t, 4, cfg.MaxConcurrency)
}

func TestHomeRespectsEnvVar(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "custom-home")
	t.Setenv("ARTISAN_HOME", dir)

	home, err := Home()
	require.NoError(t, err)
	assert.Equal(t, dir, home)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
