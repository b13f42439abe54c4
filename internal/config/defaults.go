package config

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Platform.Backend == "" {
		c.Platform.Backend = BackendREST
	}
	if c.Platform.TimeoutSeconds <= 0 {
		c.Platform.TimeoutSeconds = 15
	}
	if c.Tracker.RefreshIntervalSeconds <= 0 {
		c.Tracker.RefreshIntervalSeconds = 15
	}
	if c.Live.StaleAfterMs <= 0 {
		c.Live.StaleAfterMs = 5000
	}
	if c.Live.PollIntervalSeconds <= 0 {
		c.Live.PollIntervalSeconds = 30
	}
	if c.Live.PollTimeoutSeconds <= 0 {
		c.Live.PollTimeoutSeconds = c.Live.PollIntervalSeconds
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9985"
	}
}
