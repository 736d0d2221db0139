// ABOUTME: Tests for configuration loading, env expansion, and validation.
// ABOUTME: Verifies a missing token fails before any serving starts.

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
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
  access_token: "hunter2"
github:
  token: "ghp_file_token"
  request_timeout: "10s"
database:
  path: "/tmp/audit.db"
logging:
  level: "debug"
  format: "json"
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
		assert.Equal(t, "hunter2", cfg.Server.AccessToken)
		assert.Equal(t, "ghp_file_token", cfg.GitHub.Token)
		assert.Equal(t, 10*time.Second, cfg.GitHub.RequestTimeout)
		assert.Equal(t, "/tmp/audit.db", cfg.Database.Path)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("env var expansion", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("TEST_COVEN_TOKEN", "ghp_expanded")
		path := writeConfig(t, `
github:
  token: "${TEST_COVEN_TOKEN}"
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "ghp_expanded", cfg.GitHub.Token)
	})

	t.Run("GITHUB_TOKEN overrides the file", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "ghp_env_token")
		path := writeConfig(t, `
github:
  token: "ghp_file_token"
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "ghp_env_token", cfg.GitHub.Token)
	})

	t.Run("missing file uses env only", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "ghp_env_token")
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "ghp_env_token", cfg.GitHub.Token)
		assert.Empty(t, cfg.Server.HTTPAddr)
	})

	t.Run("missing token fails startup", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.ErrorIs(t, err, ErrMissingCredential)
	})

	t.Run("LoadUnvalidated tolerates a missing token", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		path := writeConfig(t, `
database:
  path: "/tmp/audit.db"
`)
		cfg, err := LoadUnvalidated(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/audit.db", cfg.Database.Path)
		assert.Empty(t, cfg.GitHub.Token)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "ghp_x")
		path := writeConfig(t, `
github:
  request_timeout: "not-a-duration"
`)
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "ghp_x")
		path := writeConfig(t, "github: [broken")
		_, err := Load(path)
		require.Error(t, err)
	})
}
