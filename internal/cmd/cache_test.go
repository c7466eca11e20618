package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStatsReportsEmptyStore(t *testing.T) {
	t.Setenv("ARTISAN_HOME", t.TempDir())
	t.Setenv("ARTISAN_CACHE_DIR", t.TempDir())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"cache", "stats"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "entries: 0")
}

func TestCacheClearThenStatsIsEmpty(t *testing.T) {
	t.Setenv("ARTISAN_HOME", t.TempDir())
	t.Setenv("ARTISAN_CACHE_DIR", t.TempDir())

	clear := NewRootCommand()
	clear.SetArgs([]string{"cache", "clear"})
	var clearOut bytes.Buffer
	clear.SetOut(&clearOut)
	require.NoError(t, clear.Execute())
	assert.Contains(t, clearOut.String(), "cache cleared")

	stats := NewRootCommand()
	var statsOut bytes.Buffer
	stats.SetOut(&statsOut)
	stats.SetArgs([]string{"cache", "stats"})
	require.NoError(t, stats.Execute())
	assert.Contains(t, statsOut.String(), "entries: 0")
}

func TestCacheGcReportsBeforeAndAfter(t *testing.T) {
	t.Setenv("ARTISAN_HOME", t.TempDir())
	t.Setenv("ARTISAN_CACHE_DIR", t.TempDir())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"cache", "gc"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "entries:")
	assert.Contains(t, out.String(), "total bytes:")
}
