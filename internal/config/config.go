// Package config loads and validates the framework's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomlabs/loom/internal/types"
)

// Config is the root configuration for the Loom framework.
type Config struct {
	Core      CoreConfig      `yaml:"core"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	// SessionID keys the persisted goal set. Empty means a fresh session
	// id is generated at startup.
	SessionID string `yaml:"session_id"`

	// ItemDelay throttles sequential processing of array content.
	ItemDelay time.Duration `yaml:"item_delay"`

	// RoomCapacity bounds per-room recent memories.
	RoomCapacity int `yaml:"room_capacity"`

	Debug bool `yaml:"debug"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Ignored by the memory driver.
	Path string `yaml:"path"`

	MaxConnections int           `yaml:"max_connections"`
	BusyTimeout    time.Duration `yaml:"busy_timeout"`
}

// RedisConfig configures the optional shared plan cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PlanTTL  time.Duration `yaml:"plan_ttl"`
}

// SchedulerConfig configures the scheduled-task poller.
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Core: CoreConfig{
			ItemDelay:    100 * time.Millisecond,
			RoomCapacity: 50,
		},
		Database: DatabaseConfig{
			Driver:         "memory",
			MaxConnections: 10,
			BusyTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			PlanTTL: 24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file, layering it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to parse config file", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "sqlite":
		if c.Database.Path == "" {
			return types.NewError(types.CONFIG_VALIDATION_FAILED, "sqlite driver requires database.path")
		}
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}

	if c.Scheduler.PollInterval < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "scheduler.poll_interval cannot be negative")
	}
	if c.Core.ItemDelay < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "core.item_delay cannot be negative")
	}
	return nil
}
