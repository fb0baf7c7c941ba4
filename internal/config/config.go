// Package config loads bundlecost configuration from file, environment
// and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/bundlecost/bundlecost/internal/observability"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig               `mapstructure:"server"`
	Cache   CacheConfig                `mapstructure:"cache"`
	Bundle  BundleConfig               `mapstructure:"bundle"`
	Watcher WatcherConfig              `mapstructure:"watcher"`
	Tracing observability.TracerConfig `mapstructure:"tracing"`
	Debug   bool                       `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings for daemon mode
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

// CacheConfig contains cache TTL settings
type CacheConfig struct {
	PositiveTTL time.Duration `mapstructure:"positive_ttl"`
	NegativeTTL time.Duration `mapstructure:"negative_ttl"`
}

// BundleConfig contains measurement settings
type BundleConfig struct {
	Concurrency int64 `mapstructure:"concurrency"`
}

// WatcherConfig contains lockfile watcher settings
type WatcherConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	viper.SetConfigName("bundlecost")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bundlecost")

	setDefaults()

	// Enable environment variable support with underscore replacer
	viper.AutomaticEnv()
	viper.SetEnvPrefix("BUNDLECOST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Info().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.address", "127.0.0.1:8480")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.body_limit", 1024*1024) // 1MB

	// Cache defaults
	viper.SetDefault("cache.positive_ttl", "1h")
	viper.SetDefault("cache.negative_ttl", "5m")

	// Bundle defaults
	viper.SetDefault("bundle.concurrency", 4)

	// Watcher defaults
	viper.SetDefault("watcher.enabled", true)
	viper.SetDefault("watcher.debounce", "2s")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("tracing.service_name", "bundlecost")
	viper.SetDefault("tracing.environment", "development")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)

	viper.SetDefault("debug", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Cache.PositiveTTL <= 0 {
		return fmt.Errorf("cache.positive_ttl must be positive")
	}
	if c.Cache.NegativeTTL <= 0 {
		return fmt.Errorf("cache.negative_ttl must be positive")
	}
	if c.Cache.NegativeTTL > c.Cache.PositiveTTL {
		return fmt.Errorf("cache.negative_ttl must not exceed cache.positive_ttl")
	}
	if c.Bundle.Concurrency <= 0 {
		return fmt.Errorf("bundle.concurrency must be positive")
	}
	if c.Watcher.Enabled && c.Watcher.Debounce <= 0 {
		return fmt.Errorf("watcher.debounce must be positive when the watcher is enabled")
	}
	return nil
}
