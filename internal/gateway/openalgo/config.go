package openalgo

import (
	"strings"
	"time"
)

// Config describes the strategy-platform endpoints the tracker talks to.
type Config struct {
	APIURL         string
	WSURL          string
	APIKey         string
	TimeoutSeconds int
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) normalized() Config {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	c.WSURL = strings.TrimSpace(c.WSURL)
	c.APIKey = strings.TrimSpace(c.APIKey)
	return c
}
