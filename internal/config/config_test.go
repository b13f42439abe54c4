package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
platform:
  backend: rest
  api_url: http://127.0.0.1:5000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 15, cfg.Platform.TimeoutSeconds)
	assert.Equal(t, 15, cfg.Tracker.RefreshIntervalSeconds)
	assert.Equal(t, 5000, cfg.Live.StaleAfterMs)
	assert.Equal(t, 30, cfg.Live.PollIntervalSeconds)
	assert.Equal(t, ":9985", cfg.HTTP.Addr)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  env: prod
  log_level: debug
platform:
  backend: sqlite
  api_url: http://127.0.0.1:5000
  ws_url: ws://127.0.0.1:8765
  api_key: abc123
  timeout_seconds: 30
tracker:
  refresh_interval_seconds: 60
live:
  feed_enabled: true
  stale_after_ms: 3000
  poll_interval_seconds: 20
  poll_timeout_seconds: 10
store:
  path: /tmp/openalgo.db
http:
  addr: 127.0.0.1:8080
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSqlite, cfg.Platform.Backend)
	assert.Equal(t, "abc123", cfg.Platform.APIKey)
	assert.Equal(t, 60, cfg.Tracker.RefreshIntervalSeconds)
	assert.True(t, cfg.Live.FeedEnabled)
	assert.Equal(t, "/tmp/openalgo.db", cfg.Store.Path)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "rest requires api url",
			body: "platform:\n  backend: rest\n",
			want: "api_url",
		},
		{
			name: "sqlite requires store path",
			body: "platform:\n  backend: sqlite\n",
			want: "store.path",
		},
		{
			name: "unknown backend",
			body: "platform:\n  backend: grpc\n",
			want: "backend",
		},
		{
			name: "feed requires ws url",
			body: "platform:\n  backend: rest\n  api_url: http://x\nlive:\n  feed_enabled: true\n",
			want: "ws_url",
		},
		{
			name: "refresh interval out of range",
			body: "platform:\n  backend: rest\n  api_url: http://x\ntracker:\n  refresh_interval_seconds: 2\n",
			want: "refresh_interval_seconds",
		},
		{
			name: "poll timeout exceeds interval",
			body: "platform:\n  backend: rest\n  api_url: http://x\nlive:\n  poll_interval_seconds: 10\n  poll_timeout_seconds: 20\n",
			want: "poll_timeout_seconds",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDumpMasksSecrets(t *testing.T) {
	path := writeConfig(t, `
platform:
  backend: rest
  api_url: http://127.0.0.1:5000
  api_key: supersecret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.NotContains(t, out, "supersecret")
	assert.Contains(t, out, "***")
}
