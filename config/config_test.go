package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/MasterOfBinary/gocommit/buffer"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), Flags(), nil)
	require.NoError(t, err)

	assert.Equal(t, buffer.DefaultCapacity, cfg.Buffer.Capacity)
	assert.Equal(t, buffer.DefaultMaxWait, cfg.Buffer.MaxWait)
	assert.Equal(t, buffer.DefaultFlushFraction, cfg.Buffer.FlushFraction)
	assert.Zero(t, cfg.Buffer.ReceiveTimeout)
	assert.Equal(t, buffer.DefaultTickInterval, cfg.Scheduler.Interval)
	assert.Equal(t, SinkDiscard, cfg.Sink.Kind)
	assert.Equal(t, 1, cfg.Source.Workers)
	assert.Equal(t, "id", cfg.Source.KeyField)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gocommit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
buffer:
  capacity: 50
  max_wait: 250ms
  flush_fraction: 0.2
sink:
  kind: sql
  sql:
    driver: sqlite
    dsn: file.db
source:
  workers: 3
`), 0o600))

	t.Setenv("GOCOMMIT_BUFFER_CAPACITY", "75")
	t.Setenv("GOCOMMIT_SOURCE_KEY_FIELD", "doc_id")

	cfg, err := Load(viper.New(), Flags(), []string{
		"--config", path,
		"--source.workers", "8",
	})
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.Buffer.Capacity, "env overrides the file")
	assert.Equal(t, 250*time.Millisecond, cfg.Buffer.MaxWait, "file overrides the default")
	assert.InDelta(t, 0.2, cfg.Buffer.FlushFraction, 1e-9)
	assert.Equal(t, SinkSQL, cfg.Sink.Kind)
	assert.Equal(t, "file.db", cfg.Sink.SQL.DSN)
	assert.Equal(t, "documents", cfg.Sink.SQL.Table)
	assert.Equal(t, 8, cfg.Source.Workers, "flags override everything")
	assert.Equal(t, "doc_id", cfg.Source.KeyField)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(viper.New(), Flags(), []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
		assert.Error(t, err)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := Load(viper.New(), Flags(), []string{"--nope"})
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(viper.New(), Flags(), []string{"--sink.kind", "kafka"})
		assert.ErrorContains(t, err, "sink.kind")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load(viper.New(), Flags(), nil)
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		errs   int
	}{
		{"valid", func(*Config) {}, 0},
		{"negative capacity", func(c *Config) { c.Buffer.Capacity = -1 }, 1},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }, 1},
		{"zero workers", func(c *Config) { c.Source.Workers = 0 }, 1},
		{"negative timeout", func(c *Config) { c.Sink.Timeout = -time.Second }, 1},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, 1},
		{"sql without dsn", func(c *Config) { c.Sink.Kind = SinkSQL }, 1},
		{"sql bad driver and table", func(c *Config) {
			c.Sink.Kind = SinkSQL
			c.Sink.SQL.Driver = "oracle"
			c.Sink.SQL.DSN = "x"
			c.Sink.SQL.Table = ""
		}, 2},
		{"several", func(c *Config) {
			c.Buffer.FlushFraction = 2
			c.Source.Workers = -1
			c.Sink.Kind = "?"
		}, 3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.modify(&cfg)

			err := cfg.Validate()
			assert.Len(t, multierr.Errors(err), test.errs)
		})
	}
}

func TestLogConfig_Build(t *testing.T) {
	logger, err := LogConfig{Level: "debug", Development: true}.Build()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = LogConfig{Level: "warn"}.Build()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = LogConfig{Level: "nope"}.Build()
	assert.Error(t, err)
}
