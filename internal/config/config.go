// Package config loads the qpool CLI configuration from defaults, an
// optional YAML file and QPOOL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "QPOOL"

// Backends accepted in Store.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendNATS   = "nats"
)

var ErrUnknownBackend = errors.New("unknown store backend")

type Config struct {
	// User is recorded as creator or editor of the pools the CLI touches.
	User string `mapstructure:"user"`

	Store     StoreConfig    `mapstructure:"store"`
	Snapshots SnapshotConfig `mapstructure:"snapshots"`
	Log       LogConfig      `mapstructure:"log"`
}

type StoreConfig struct {
	Backend string        `mapstructure:"backend"` // memory, sqlite, mysql, nats
	Timeout time.Duration `mapstructure:"timeout"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	NATS    NATSConfig    `mapstructure:"nats"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type NATSConfig struct {
	URL            string `mapstructure:"url"`
	SubjectPrefix  string `mapstructure:"subject_prefix"`
	SnapshotBucket string `mapstructure:"snapshot_bucket"`
	MemoryStorage  bool   `mapstructure:"memory_storage"`
}

type SnapshotConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Validate checks the settings the selected backend needs.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required")
		}
	case BackendMySQL:
		if c.Store.MySQL.DSN == "" {
			return errors.New("store.mysql.dsn is required")
		}
	case BackendNATS:
		if c.Store.NATS.URL == "" {
			return errors.New("store.nats.url is required")
		}
		if c.Store.NATS.SubjectPrefix == "" {
			return errors.New("store.nats.subject_prefix is required")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Store.Backend)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level, an empty level is info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Load reads configPath, or ./qpool.yaml and ./config/qpool.yaml when
// configPath is empty. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("qpool")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user", "")

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.timeout", "30s")
	v.SetDefault("store.sqlite.path", "qpool.db")
	v.SetDefault("store.mysql.dsn", "")
	v.SetDefault("store.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("store.nats.subject_prefix", "qpool.es")
	v.SetDefault("store.nats.snapshot_bucket", "qpool_snapshots")
	v.SetDefault("store.nats.memory_storage", false)

	v.SetDefault("snapshots.enabled", false)

	v.SetDefault("log.level", "info")
}
