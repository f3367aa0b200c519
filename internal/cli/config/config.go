package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/conduit-lang/recordkit/internal/logging"
	"github.com/conduit-lang/recordkit/internal/orm/port/redisstore"
)

// EnvPrefix namespaces environment overrides, e.g. RECORDKIT_STORE_DRIVER
const EnvPrefix = "RECORDKIT"

// ConfigNames are the file names searched for, in order
var ConfigNames = []string{"recordkit.yaml", "recordkit.yml"}

// ErrNoConfigFile is returned by FindConfigFile when no directory up to the
// filesystem root holds a config file
var ErrNoConfigFile = errors.New("no recordkit.yaml found")

// Drivers lists the supported store.driver values
var Drivers = []string{"memory", "sqlite3", "pgx", "postgres", "redis"}

// Config represents the recordkit configuration
type Config struct {
	Schema string      `mapstructure:"schema"`
	Store  StoreConfig `mapstructure:"store"`
	Redis  RedisConfig `mapstructure:"redis"`
	Log    LogConfig   `mapstructure:"log"`

	// File is the config file that was read, empty when running on defaults
	File string `mapstructure:"-"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// RedisConfig is used when store.driver is redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func newViper() *viper.Viper {
	v := viper.New()

	// Every key needs a default for AutomaticEnv to reach it during Unmarshal
	v.SetDefault("schema", "schema.yaml")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "recordkit:")
	v.SetDefault("log.level", logging.DefaultLevel)
	v.SetDefault("log.development", false)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load finds recordkit.yaml in the current directory or one of its parents
// and loads it. Without a config file the defaults and environment apply.
func Load() (*Config, error) {
	path, err := FindConfigFile()
	if err != nil && !errors.Is(err, ErrNoConfigFile) {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration from path. An empty path loads defaults
// and environment overrides only.
func LoadFile(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.File = path

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// FindConfigFile walks up from the working directory looking for a config file
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range ConfigNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoConfigFile
		}
		dir = parent
	}
}

// SchemaPath resolves the schema file relative to the config file
func (c *Config) SchemaPath() string {
	if c.Schema == "" || filepath.IsAbs(c.Schema) || c.File == "" {
		return c.Schema
	}
	return filepath.Join(filepath.Dir(c.File), c.Schema)
}

// RedisOptions converts the redis section for redisstore
func (c *Config) RedisOptions() redisstore.Config {
	return redisstore.Config{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
	}
}

// Logging converts the log section for the logging package
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:       c.Log.Level,
		Development: c.Log.Development,
	}
}

// IsSQL reports whether the store is backed by database/sql
func (s StoreConfig) IsSQL() bool {
	switch s.Driver {
	case "sqlite3", "pgx", "postgres":
		return true
	}
	return false
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	known := false
	for _, d := range Drivers {
		if cfg.Store.Driver == d {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("store.driver must be one of %s, got: %s", strings.Join(Drivers, ", "), cfg.Store.Driver)
	}
	if cfg.Store.IsSQL() && cfg.Store.URL == "" {
		return fmt.Errorf("store.url is required for the %s driver", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis driver")
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative, got: %d", cfg.Redis.DB)
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
