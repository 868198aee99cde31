package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Server.Port)
	assert.Equal(t, "data", cfg.Collector.DataDir)
	assert.Equal(t, 120*time.Second, cfg.Interval())
	assert.Equal(t, 5, cfg.Collector.MaxConsecutiveFailures)
	assert.Equal(t, 4*time.Hour, cfg.FetcherMaxAge())
	assert.Equal(t, 48*time.Hour, cfg.RetentionWindow())
	assert.Equal(t, 5, cfg.Retention.KeepFiles)
	assert.Equal(t, 10, cfg.Collector.SnapshotEvery)
	assert.Equal(t, 50, cfg.Collector.RetentionEvery)
	assert.Equal(t, 10, cfg.Collector.PingEvery)
	assert.Equal(t, 20, cfg.Collector.GCEvery)
	assert.Equal(t, 5, cfg.Collector.MaxRestarts)
	assert.Equal(t, 60*time.Second, cfg.RestartDelay())
	assert.True(t, cfg.Fetcher.Headless)
	assert.Equal(t, "noop", cfg.DB.Provider)
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
collector:
  interval_seconds: 30
  data_dir: /tmp/odds
retention:
  window_hours: 24
  keep_files: 3
health:
  ping_url: https://hc.example.com/ping
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Interval())
	assert.Equal(t, "/tmp/odds", cfg.Collector.DataDir)
	assert.Equal(t, 24*time.Hour, cfg.RetentionWindow())
	assert.Equal(t, 3, cfg.Retention.KeepFiles)
	assert.Equal(t, "https://hc.example.com/ping", cfg.Health.PingURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COLLECTOR_COLLECTOR_INTERVAL_SECONDS", "15")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Interval())
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Collector.IntervalSeconds = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Collector.DataDir = ""
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Retention.KeepFiles = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.DB.Provider = "postgres"
	require.Error(t, cfg.Validate(), "postgres provider without DSN")
}
