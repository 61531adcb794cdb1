package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomlabs/loom/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 100*time.Millisecond, cfg.Core.ItemDelay)
	assert.Equal(t, 50, cfg.Core.RoomCapacity)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
core:
  session_id: agent-7
  item_delay: 250ms
database:
  driver: sqlite
  path: /tmp/loom.db
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "agent-7", cfg.Core.SessionID)
	assert.Equal(t, 250*time.Millisecond, cfg.Core.ItemDelay)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/loom.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep defaults.
	assert.Equal(t, 50, cfg.Scheduler.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Redis.PlanTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.CONFIG_LOAD_FAILED))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "core: [not a mapping")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.CONFIG_PARSE_FAILED))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "unknown database driver",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Database.Driver = "sqlite"
				c.Database.Path = ""
			},
			wantErr: "requires database.path",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "unknown log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "unknown log format",
		},
		{
			name:    "negative poll interval",
			mutate:  func(c *Config) { c.Scheduler.PollInterval = -time.Second },
			wantErr: "poll_interval",
		},
		{
			name:    "negative item delay",
			mutate:  func(c *Config) { c.Core.ItemDelay = -time.Millisecond },
			wantErr: "item_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.CONFIG_VALIDATION_FAILED))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
