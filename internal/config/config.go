// Package config loads application configuration from an optional YAML file
// and GEXD_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ProviderConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Token         string `mapstructure:"token"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelaySec int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type CacheConfig struct {
	TTLSec          int `mapstructure:"ttl_sec"`
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec"`
}

type RefreshConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	IntervalSec int      `mapstructure:"interval_sec"`
	Symbols     []string `mapstructure:"symbols"`
	Timezone    string   `mapstructure:"timezone"`
}

type ServerConfig struct {
	Port              string `mapstructure:"port"`
	WSEnabled         bool   `mapstructure:"ws_enabled"`
	StreamIntervalSec int    `mapstructure:"stream_interval_sec"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("provider.base_url", "https://api.schwab.com")
	v.SetDefault("provider.timeout_sec", 60)
	v.SetDefault("provider.retry_count", 3)
	v.SetDefault("provider.retry_delay_sec", 2)
	v.SetDefault("provider.rate_per_second", 2)
	v.SetDefault("cache.ttl_sec", 1800)
	v.SetDefault("cache.fetch_timeout_sec", 30)
	v.SetDefault("refresh.enabled", false)
	v.SetDefault("refresh.interval_sec", 300)
	v.SetDefault("refresh.timezone", "America/New_York")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.ws_enabled", true)
	v.SetDefault("server.stream_interval_sec", 60)
	v.SetDefault("storage.path", "gex.db")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("GEXD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("provider.token", "GEXD_PROVIDER_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Cache.TTLSec < 1 {
		return fmt.Errorf("cache.ttl_sec must be >= 1")
	}
	if c.Refresh.Enabled {
		if c.Provider.Token == "" {
			return fmt.Errorf("provider token is required for auto-refresh (set GEXD_PROVIDER_TOKEN env var)")
		}
		if c.Refresh.IntervalSec < 1 {
			return fmt.Errorf("refresh.interval_sec must be >= 1")
		}
		if len(c.Refresh.Symbols) == 0 {
			return fmt.Errorf("refresh.symbols must list at least one symbol")
		}
	}
	return nil
}

// TTL returns the cache freshness bound as a duration.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// FetchTimeout bounds a single provider fetch.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Cache.FetchTimeoutSec) * time.Second
}

// RefreshInterval is the auto-refresh cadence.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSec) * time.Second
}

// StreamInterval is the websocket broadcast cadence.
func (c *Config) StreamInterval() time.Duration {
	return time.Duration(c.Server.StreamIntervalSec) * time.Second
}
