package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/emitenwatch.db", cfg.Database.SQLitePath)
	assert.Equal(t, 5, cfg.Analysis.PollIntervalSeconds)
	assert.Empty(t, cfg.Schedule.RefreshCron)
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9090"
  api_token: secret
upstream:
  base_url: https://provider.example.com
  token: upstream-token
database:
  sqlite_path: /tmp/test.db
analysis:
  poll_interval_seconds: 2
schedule:
  refresh_cron: "0 */30 * * * *"
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "secret", cfg.Server.APIToken)
	assert.Equal(t, "https://provider.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, "/tmp/test.db", cfg.Database.SQLitePath)
	assert.Equal(t, 2, cfg.Analysis.PollIntervalSeconds)
	assert.Equal(t, "0 */30 * * * *", cfg.Schedule.RefreshCron)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: ":9090"
upstream:
  base_url: https://file.example.com
`)
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("UPSTREAM_BASE_URL", "https://env.example.com")
	t.Setenv("POLL_INTERVAL_SECONDS", "9")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "https://env.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 9, cfg.Analysis.PollIntervalSeconds)
}

func TestLoad_IgnoresMalformedPollIntervalEnv(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Analysis.PollIntervalSeconds)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")

	_, err := Load(path)

	assert.Error(t, err)
}

func TestValidate_RequiresUpstreamBaseURL(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	assert.Error(t, cfg.Validate())

	cfg.Upstream.BaseURL = "https://provider.example.com"
	assert.NoError(t, cfg.Validate())
}
