package logging

import (
	"os"
	"path/filepath"
	"testing"

	"agridash/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agridash.log")
	logger, err := New(config.LogConfig{Level: "info", Encoding: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("bundle loaded", zap.String("bundle_id", "abc"))
	_ = logger.Sync()

	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"msg":"bundle loaded"`)
	assert.Contains(t, string(payload), `"bundle_id":"abc"`)
	assert.NotContains(t, string(payload), "hidden")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud", Encoding: "json"})
	assert.Error(t, err)
	_, err = New(config.LogConfig{Level: "info", Encoding: "xml"})
	assert.Error(t, err)
}
