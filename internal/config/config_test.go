package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "atsassist.sqlite3", cfg.Sqlite.Dsn)
	assert.Equal(t, "127.0.0.1:7345", cfg.Server.Listen)
	assert.Equal(t, []string{"console"}, cfg.Log.Writer)
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atsassist.yaml")
	content := `
sqlite:
  dsn: /tmp/ats.db
devtools:
  url: http://127.0.0.1:9222
  poll-interval-ms: 750
candidates:
  base-url: https://api.example.com
  org-id: org-1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ATSASSIST_SERVER_LISTEN", "127.0.0.1:9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ats.db", cfg.Sqlite.Dsn)
	assert.Equal(t, "atsassist_", cfg.Sqlite.Prefix)
	assert.Equal(t, "http://127.0.0.1:9222", cfg.DevTools.URL)
	assert.Equal(t, 750*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Listen)
	assert.Equal(t, "org-1", cfg.Candidates.OrgID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	cfg.Candidates.BaseURL = "https://api.example.com"
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Server.Listen = ""
	assert.Error(t, cfg.Validate())
}
