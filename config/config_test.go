package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "artifacts", cfg.ML.ArtifactDir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
http:
  port: 9090
  timeout: 5s
  allowed_origins: ["https://farm.example"]
database:
  path: /tmp/agri.db
log:
  level: debug
  encoding: console
ml:
  artifact_dir: /srv/bundle
  cache_size: 0
  watch_artifacts: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("AGRIDASH_DB_PATH", "/var/lib/agri.db")
	t.Setenv("AGRIDASH_LOG_FILE", "/var/log/agri.log")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, []string{"https://farm.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
	assert.Equal(t, "/var/lib/agri.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.Equal(t, "/var/log/agri.log", cfg.Log.File)
	assert.Equal(t, "/srv/bundle", cfg.ML.ArtifactDir)
	assert.Equal(t, 0, cfg.ML.CacheSize)
	assert.False(t, cfg.ML.WatchArtifacts)
	assert.True(t, cfg.ML.RecordPredictions)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("AGRIDASH_PORT", "not-a-port")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("AGRIDASH_PORT", "70000")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
