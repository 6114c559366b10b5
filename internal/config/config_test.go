// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9090
database:
  path: "/tmp/test.db"
mirror:
  path: "/tmp/mirror.xlsx"
analyzer:
  url: "http://analyzer:3456"
  model: "food-v2"
ingest:
  debounce: "2s"
  dedup_window: "5m"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/mirror.xlsx", cfg.Mirror.Path)
	assert.Equal(t, "http://analyzer:3456", cfg.Analyzer.URL)
	assert.Equal(t, "food-v2", cfg.Analyzer.Model)
	assert.Equal(t, 2*time.Second, cfg.Ingest.Debounce)
	assert.Equal(t, 5*time.Minute, cfg.Ingest.DedupWindow)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8011, cfg.Server.Port)
	assert.Equal(t, "http://localhost:3456", cfg.Analyzer.URL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Mirror.Path)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/var/lib/tracker.db")
	path := writeConfig(t, `
database:
  path: "${TEST_DB_PATH}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tracker.db", cfg.Database.Path)
}

func TestLoad_UnsetEnvBecomesEmpty(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "${DEFINITELY_NOT_SET_ANYWHERE}"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path is required")
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
ingest:
  debounce: "soon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.debounce")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate_BadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
