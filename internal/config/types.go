package config

// Config is the full runtime configuration.
type Config struct {
	App      AppConfig      `toml:"app"`
	Platform PlatformConfig `toml:"platform"`
	Tracker  TrackerConfig  `toml:"tracker"`
	Live     LiveConfig     `toml:"live"`
	Store    StoreConfig    `toml:"store"`
	HTTP     HTTPConfig     `toml:"http"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

// PlatformConfig selects how the tracker reaches the strategy platform:
// its REST/websocket API, or its local sqlite database directly.
type PlatformConfig struct {
	Backend        string `toml:"backend"`
	APIURL         string `toml:"api_url"`
	WSURL          string `toml:"ws_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

const (
	BackendREST   = "rest"
	BackendSqlite = "sqlite"
)

type TrackerConfig struct {
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`
}

type LiveConfig struct {
	FeedEnabled         bool `toml:"feed_enabled"`
	StaleAfterMs        int  `toml:"stale_after_ms"`
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	PollTimeoutSeconds  int  `toml:"poll_timeout_seconds"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}
