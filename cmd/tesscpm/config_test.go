package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "tesscpm/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Ingest.RemoveBad)
	assert.True(t, cfg.Ingest.Verbose)
}

func TestConfigValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Ingest.Workers = -2
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("TESSCPM_TEST_PROM", "/var/lib/node_exporter/tesscpm.prom")
	path := filepath.Join(t.TempDir(), "tesscpm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ingest:
  remove_bad: false
  workers: 4
log:
  level: debug
metrics:
  textfile: ${TESSCPM_TEST_PROM}
`), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(path, cfg))
	assert.False(t, cfg.Ingest.RemoveBad)
	assert.True(t, cfg.Ingest.Verbose)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "/var/lib/node_exporter/tesscpm.prom", cfg.Metrics.Textfile)
}
