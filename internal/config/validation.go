package config

import "fmt"

func validate(cfg *Config) error {
	switch cfg.Platform.Backend {
	case BackendREST:
		if cfg.Platform.APIURL == "" {
			return fmt.Errorf("platform.api_url cannot be empty with backend=rest")
		}
	case BackendSqlite:
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path cannot be empty with backend=sqlite")
		}
	default:
		return fmt.Errorf("platform.backend must be %q or %q, got %q",
			BackendREST, BackendSqlite, cfg.Platform.Backend)
	}
	if cfg.Live.FeedEnabled && cfg.Platform.WSURL == "" {
		return fmt.Errorf("platform.ws_url cannot be empty with live.feed_enabled=true")
	}
	if cfg.Tracker.RefreshIntervalSeconds < 5 || cfg.Tracker.RefreshIntervalSeconds > 300 {
		return fmt.Errorf("tracker.refresh_interval_seconds must be within 5..300, got %d",
			cfg.Tracker.RefreshIntervalSeconds)
	}
	if cfg.Live.PollTimeoutSeconds > cfg.Live.PollIntervalSeconds {
		return fmt.Errorf("live.poll_timeout_seconds cannot exceed live.poll_interval_seconds")
	}
	return nil
}
