package seeder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	// An explicitly named file must exist.
	assert.Error(t, err)

	cfg = Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8085", cfg.Gateway.URL)
	assert.Equal(t, 2, cfg.Hierarchy.Tenants)
	assert.Equal(t, 25, cfg.Traffic.BatchSize)
}

func TestProfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeder.yaml")

	profile := Default()
	profile.Gateway.URL = "http://gateway:8085"
	profile.Traffic.Events = 42
	require.NoError(t, profile.WriteProfile(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gateway:8085", loaded.Gateway.URL)
	assert.Equal(t, 42, loaded.Traffic.Events)
	assert.Equal(t, profile.Hierarchy, loaded.Hierarchy)
}

func TestValidateRejectsBadProfiles(t *testing.T) {
	cfg := Default()
	cfg.Gateway.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Hierarchy.Tenants = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Traffic.BatchSize = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeder.yaml")
	content := `
gateway:
  url: http://localhost:9999
hierarchy:
  tenants: 5
traffic:
  events: 1000
  batch_size: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.Gateway.URL)
	assert.Equal(t, 5, cfg.Hierarchy.Tenants)
	assert.Equal(t, 1000, cfg.Traffic.Events)
	assert.Equal(t, 100, cfg.Traffic.BatchSize)
	// Unset fan-out values keep defaults.
	assert.Equal(t, 2, cfg.Hierarchy.DataCoresPerTenant)
}
