// Package config loads the gocommitd daemon configuration from a file,
// GOCOMMIT_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MasterOfBinary/gocommit/buffer"
)

// EnvPrefix is the prefix of environment variables read by Load. The
// variable for a key replaces dots with underscores, so buffer.capacity is
// read from GOCOMMIT_BUFFER_CAPACITY.
const EnvPrefix = "GOCOMMIT"

// Sink kinds.
const (
	SinkBadger  = "badger"
	SinkSQL     = "sql"
	SinkDiscard = "discard"
)

// Config is the complete daemon configuration.
type Config struct {
	Buffer    buffer.ConfigValues `mapstructure:"buffer"`
	Scheduler SchedulerConfig     `mapstructure:"scheduler"`
	Sink      SinkConfig          `mapstructure:"sink"`
	Source    SourceConfig        `mapstructure:"source"`
	Metrics   MetricsConfig       `mapstructure:"metrics"`
	Log       LogConfig           `mapstructure:"log"`
}

// SchedulerConfig configures the tick scheduler.
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// SinkConfig selects and configures the sink.
type SinkConfig struct {
	// Kind is one of "badger", "sql" or "discard".
	Kind string `mapstructure:"kind"`
	// Timeout bounds each commit. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`

	Badger BadgerConfig `mapstructure:"badger"`
	SQL    SQLConfig    `mapstructure:"sql"`
}

// BadgerConfig configures the BadgerDB sink.
type BadgerConfig struct {
	// Path is the database directory. An empty path keeps the database in
	// memory.
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// SQLConfig configures the database/sql sink.
type SQLConfig struct {
	// Driver is "pgx" for PostgreSQL or "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// SourceConfig configures the stdin reader.
type SourceConfig struct {
	Workers  int    `mapstructure:"workers"`
	KeyField string `mapstructure:"key_field"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address of the /metrics server. Empty disables it.
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults sets the viper defaults for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("buffer.capacity", buffer.DefaultCapacity)
	v.SetDefault("buffer.max_wait", buffer.DefaultMaxWait)
	v.SetDefault("buffer.flush_fraction", buffer.DefaultFlushFraction)
	v.SetDefault("buffer.receive_timeout", time.Duration(0))
	v.SetDefault("scheduler.interval", buffer.DefaultTickInterval)
	v.SetDefault("sink.kind", SinkDiscard)
	v.SetDefault("sink.timeout", time.Duration(0))
	v.SetDefault("sink.badger.path", "")
	v.SetDefault("sink.badger.ttl", time.Duration(0))
	v.SetDefault("sink.sql.driver", "sqlite")
	v.SetDefault("sink.sql.dsn", "")
	v.SetDefault("sink.sql.table", "documents")
	v.SetDefault("source.workers", 1)
	v.SetDefault("source.key_field", "id")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.namespace", "gocommit")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Flags returns the command-line flags of the daemon. Every flag is named
// after its configuration key.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("gocommitd", pflag.ContinueOnError)

	fs.String("config", "", "path to a YAML, TOML or JSON configuration file")
	fs.Int("buffer.capacity", buffer.DefaultCapacity, "maximum number of buffered items")
	fs.Duration("buffer.max_wait", buffer.DefaultMaxWait, "maximum age of a batch before it is flushed")
	fs.Float64("buffer.flush_fraction", buffer.DefaultFlushFraction, "flush when free space falls to this fraction of capacity")
	fs.Duration("buffer.receive_timeout", 0, "maximum time a producer waits for space (0 waits forever)")
	fs.Duration("scheduler.interval", buffer.DefaultTickInterval, "tick interval")
	fs.String("sink.kind", SinkDiscard, "sink kind: badger, sql or discard")
	fs.Duration("sink.timeout", 0, "per-commit timeout (0 disables)")
	fs.String("sink.badger.path", "", "BadgerDB directory (empty for in-memory)")
	fs.Duration("sink.badger.ttl", 0, "TTL of written entries (0 disables)")
	fs.String("sink.sql.driver", "sqlite", "SQL driver: pgx or sqlite")
	fs.String("sink.sql.dsn", "", "SQL data source name")
	fs.String("sink.sql.table", "documents", "SQL table")
	fs.Int("source.workers", 1, "number of goroutines feeding the buffer")
	fs.String("source.key_field", "id", "JSON field used as the record key")
	fs.String("metrics.addr", "", "listen address for /metrics (empty disables)")
	fs.String("metrics.namespace", "gocommit", "Prometheus metric namespace")
	fs.String("log.level", "info", "log level: debug, info, warn or error")
	fs.Bool("log.development", false, "human-friendly development logging")

	return fs
}

// Load parses args with fs and builds the configuration from defaults, the
// optional --config file, the environment and the flags.
func Load(v *viper.Viper, fs *pflag.FlagSet, args []string) (*Config, error) {
	SetDefaults(v)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var err error

	if bufErr := c.Buffer.Validate(); bufErr != nil {
		err = multierr.Append(err, fmt.Errorf("buffer: %w", bufErr))
	}
	if c.Scheduler.Interval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.interval must be positive"))
	}
	if c.Source.Workers <= 0 {
		err = multierr.Append(err, errors.New("source.workers must be positive"))
	}
	if c.Sink.Timeout < 0 {
		err = multierr.Append(err, errors.New("sink.timeout cannot be negative"))
	}

	switch c.Sink.Kind {
	case SinkBadger, SinkDiscard:
	case SinkSQL:
		if c.Sink.SQL.Driver != "pgx" && c.Sink.SQL.Driver != "sqlite" {
			err = multierr.Append(err, fmt.Errorf("sink.sql.driver must be pgx or sqlite, got %q", c.Sink.SQL.Driver))
		}
		if c.Sink.SQL.DSN == "" {
			err = multierr.Append(err, errors.New("sink.sql.dsn is required"))
		}
		if c.Sink.SQL.Table == "" {
			err = multierr.Append(err, errors.New("sink.sql.table is required"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("sink.kind must be badger, sql or discard, got %q", c.Sink.Kind))
	}

	if _, levelErr := zapcore.ParseLevel(c.Log.Level); levelErr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", levelErr))
	}

	return err
}

// Build creates the zap logger described by c.
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
