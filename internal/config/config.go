// Package config loads, validates and watches the tracker configuration.
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"legtracker/internal/logger"
)

// Load reads the YAML config at path, applies defaults and validates.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch re-reads the file on change and hands the new config to onChange.
// A reload that fails to parse or validate is dropped with a warning; the
// running config stays in effect.
func Watch(path string, onChange func(*Config)) error {
	if onChange == nil {
		return fmt.Errorf("onChange cannot be nil")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var mu sync.Mutex
	v.OnConfigChange(func(evt fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		if err := v.ReadInConfig(); err != nil {
			logger.Warnf("config: reload read failed, keeping current config: %v", err)
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warnf("config: reload rejected, keeping current config: %v", err)
			return
		}
		logger.Infof("config: reloaded from %s (%s)", path, evt.Op)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Dump renders the effective config as YAML with secrets masked, for the
// startup log.
func (c *Config) Dump() (string, error) {
	masked := *c
	if masked.Platform.APIKey != "" {
		masked.Platform.APIKey = "***"
	}
	raw, err := yaml.Marshal(masked)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
