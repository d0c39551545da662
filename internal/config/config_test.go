package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1000.0, cfg.PlanarMinX)
	assert.Equal(t, 5.0, cfg.SimplifyToleranceFt)
	assert.Equal(t, 50.0, cfg.BufferDistanceFt)
	assert.Equal(t, 200000.0, cfg.MinHoleAreaSqFt)
	require.NotEmpty(t, cfg.Omnibus)
	assert.Equal(t, "18702-29", cfg.Omnibus[0].Source)
	assert.Len(t, cfg.Omnibus[0].Lots, 3)
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"buffer_distance_ft": 75, "omnibus": [{"source": "1-1", "lots": ["1-1", "1-2"]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75.0, cfg.BufferDistanceFt)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1000.0, cfg.PlanarMinX)
	// An omnibus array in the file replaces the default table.
	require.Len(t, cfg.Omnibus, 1)
	assert.Equal(t, "1-1", cfg.Omnibus[0].Source)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
