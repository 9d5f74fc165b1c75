package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softtagz-sys/medikits-flowchart/internal/layout"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FLOWCHART_CONFIG", "")
	t.Setenv("FLOWCHART_CACHE_MAX_ITEMS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, layout.DefaultOptions(), cfg.Layout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowchart.yaml")
	body := `
cacheMaxItems: 32
logLevel: debug
expertMode: true
layout:
  nodeWidth: 240
  bandHeight: 180
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("FLOWCHART_CONFIG", path)
	t.Setenv("FLOWCHART_CACHE_MAX_ITEMS", "64")
	t.Setenv("FLOWCHART_EXPERT_MODE", "false")
	t.Setenv("FLOWCHART_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.CacheMaxItems)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.ExpertMode)
	assert.Equal(t, 240.0, cfg.Layout.NodeWidth)
	assert.Equal(t, 180.0, cfg.Layout.BandHeight)
	assert.Equal(t, 80.0, cfg.Layout.NodeHeight, "unset layout keys keep their default")
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("FLOWCHART_CONFIG", "")
	t.Setenv("FLOWCHART_CACHE_MAX_ITEMS", "zero")
	t.Setenv("FLOWCHART_OBS_BUFFER", "-3")
	t.Setenv("FLOWCHART_EXPERT_MODE", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().CacheMaxItems, cfg.CacheMaxItems)
	assert.Equal(t, Defaults().ObsBuffer, cfg.ObsBuffer)
	assert.False(t, cfg.ExpertMode)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("FLOWCHART_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	cfg, err = Decode(strings.NewReader("cacheMaxItems: 0\nobserverBuffer: 8\n"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().CacheMaxItems, cfg.CacheMaxItems)
	assert.Equal(t, 8, cfg.ObsBuffer)

	_, err = Decode(strings.NewReader("cacheSize: 4\n"))
	require.Error(t, err)
}
