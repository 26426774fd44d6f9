package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, 100, c.Cache.MaxSize)
	assert.Equal(t, 5*time.Minute, c.Cache.TTL())
	assert.Equal(t, 10, c.Ranking.MaxResults)
	assert.Equal(t, 2, c.Recovery.MaxRetries)
	assert.Equal(t, time.Second, c.Recovery.BaseDelay())
	assert.Equal(t, 10*time.Second, c.Recovery.MaxDelay())
	assert.Equal(t, time.Hour, c.Recovery.FallbackTTL())
	assert.Equal(t, time.Minute, c.Recovery.ErrorWindow())
	assert.Equal(t, 300*time.Millisecond, c.Debounce.Keyboard())
	assert.Greater(t, c.Debounce.Touch(), c.Debounce.Keyboard())
}

func TestInitConfig_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	c, err := InitConfig(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
	assert.FileExists(t, path)

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), reloaded)
}

func TestLoadConfig_OverridesAndKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[cache]
max_size = 8
ttl_ms = 1000

[data]
tables = "/srv/tables"
watch = false
`), 0644))

	c, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 8, c.Cache.MaxSize)
	assert.Equal(t, time.Second, c.Cache.TTL())
	assert.Equal(t, "/srv/tables", c.Data.Tables)
	assert.False(t, c.Data.Watch)
	assert.Equal(t, DefaultConfig().Recovery, c.Recovery)
}

func TestLoadConfig_PartialRecovery(t *testing.T) {
	// Given: a type error in one section
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[ranking]
max_results = "lots"

[recovery]
max_retries = 5
base_delay_ms = 250

[cli]
touch = true
`), 0644))

	// When: loading
	c, err := LoadConfig(path)

	// Then: the valid sections survive, the broken key keeps its default
	require.NoError(t, err)
	assert.Equal(t, 10, c.Ranking.MaxResults)
	assert.Equal(t, 5, c.Recovery.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, c.Recovery.BaseDelay())
	assert.True(t, c.CLI.Touch)
}

func TestLoadConfig_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[[ not toml"), 0644))

	c, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c := DefaultConfig()
	limit := 20

	require.NoError(t, c.Update(path, &limit, nil, nil))

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20, reloaded.Server.MaxLimit)
	assert.Equal(t, DefaultConfig().Server.MaxQuery, reloaded.Server.MaxQuery)
}
