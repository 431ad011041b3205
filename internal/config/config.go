// Package config loads patrolsync configuration from file, environment,
// and defaults.
//
// Lookup order: explicit --config path, then patrolsync.yaml in the data
// directory, then built-in defaults. Every key can be overridden through
// the environment with a PATROLSYNC_ prefix (dots become underscores),
// e.g. PATROLSYNC_SERVER_URL.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	Server struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"server"`

	Device struct {
		ID      string `mapstructure:"id"`
		GuardID string `mapstructure:"guard_id"`
		SiteID  string `mapstructure:"site_id"`
	} `mapstructure:"device"`

	DataDir string `mapstructure:"data_dir"`

	Sync struct {
		Interval    time.Duration `mapstructure:"interval"`
		EventBuffer int           `mapstructure:"event_buffer"`

		Retry struct {
			MaxAttempts int           `mapstructure:"max_attempts"`
			BaseDelay   time.Duration `mapstructure:"base_delay"`
			MaxDelay    time.Duration `mapstructure:"max_delay"`
		} `mapstructure:"retry"`

		Breaker struct {
			MaxFailures  int           `mapstructure:"max_failures"`
			BaseCooldown time.Duration `mapstructure:"base_cooldown"`
			MaxCooldown  time.Duration `mapstructure:"max_cooldown"`
		} `mapstructure:"breaker"`
	} `mapstructure:"sync"`

	Network struct {
		ProbeInterval time.Duration `mapstructure:"probe_interval"`
		ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	} `mapstructure:"network"`

	Dashboard struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"dashboard"`

	Log struct {
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`
}

// defaultDataDir is used when no data_dir is configured.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".patrolsync"
	}
	return filepath.Join(home, ".patrolsync")
}

// Load reads configuration. path may be empty, in which case the data
// directory and working directory are searched for patrolsync.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.url", "https://api.guardtrack.example/v1")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.event_buffer", 16)
	v.SetDefault("sync.retry.max_attempts", 3)
	v.SetDefault("sync.retry.base_delay", 500*time.Millisecond)
	v.SetDefault("sync.retry.max_delay", 10*time.Second)
	v.SetDefault("sync.breaker.max_failures", 5)
	v.SetDefault("sync.breaker.base_cooldown", 30*time.Second)
	v.SetDefault("sync.breaker.max_cooldown", 30*time.Minute)
	v.SetDefault("network.probe_interval", 15*time.Second)
	v.SetDefault("network.probe_timeout", 5*time.Second)
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8471)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetEnvPrefix("PATROLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("patrolsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("data_dir"))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Missing config file is fine; defaults and env apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "patrol.db")
}

// TokenPath returns the auth token file location.
func (c *Config) TokenPath() string {
	return filepath.Join(c.DataDir, "token.json")
}

// RoutesPath returns the cached patrol routes file location.
func (c *Config) RoutesPath() string {
	return filepath.Join(c.DataDir, "routes.yaml")
}

// SpoolDir returns the photo spool directory.
func (c *Config) SpoolDir() string {
	return filepath.Join(c.DataDir, "spool")
}

// LogFile returns the daemon log location, defaulting into the data dir.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, "patrolsync.log")
}
