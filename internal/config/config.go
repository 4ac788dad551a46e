// Package config holds the application's root configuration, loaded once
// from Viper (config file plus MITREHUNTER_* environment overrides).
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// EnterpriseAttackURL is the canonical location of the enterprise ATT&CK
// STIX bundle.
const EnterpriseAttackURL = "https://raw.githubusercontent.com/mitre-attack/attack-stix-data/master/enterprise-attack/enterprise-attack.json"

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Query  QueryConfig  `mapstructure:"query"`
	Web    WebConfig    `mapstructure:"web"`
}

// ColorConfig defines the color settings for different log levels, used for
// console output.
type ColorConfig struct {
	Debug string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" json:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error string `mapstructure:"error" json:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// FetchConfig holds settings for downloading the ATT&CK bundle.
type FetchConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// CacheConfig holds settings for the on-disk raw bundle cache.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// QueryConfig holds settings for the query engine's front ends.
type QueryConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// WebConfig holds settings for the embedded web UI.
type WebConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// SetDefaults registers defaults so the app can run with no config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "mitre-hunter")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("fetch.url", EnterpriseAttackURL)
	v.SetDefault("fetch.timeout", 2*time.Minute)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("cache.dir", "data")
	v.SetDefault("query.max_results", 1000)
	v.SetDefault("web.listen_addr", "127.0.0.1:8791")
}

// Validate checks the configuration for values that would break a run.
func (c *Config) Validate() error {
	if c.Fetch.URL == "" {
		return fmt.Errorf("fetch.url must not be empty")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout)
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative, got %d", c.Fetch.MaxRetries)
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must not be empty")
	}
	if c.Query.MaxResults <= 0 {
		return fmt.Errorf("query.max_results must be positive, got %d", c.Query.MaxResults)
	}
	if c.Web.ListenAddr == "" {
		return fmt.Errorf("web.listen_addr must not be empty")
	}
	return nil
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set stores an already-built configuration as the singleton. Intended for
// the CLI bootstrap path and tests.
func Set(cfg *Config) {
	once.Do(func() {})
	instance = cfg
}

// Get returns the loaded configuration. It panics when called before Load
// or Set; configuration is a bootstrap-time concern and a missing one is a
// programming error, not a runtime condition.
func Get() *Config {
	if instance == nil {
		panic("config: Get() called before Load()")
	}
	return instance
}
