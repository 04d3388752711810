// Command gocommitd reads newline-delimited JSON documents from stdin and
// commits them in batches to BadgerDB or a SQL database. Documents with the
// same key that arrive within one batch window are collapsed to the newest.
//
// Usage:
//
//	gocommitd --sink.kind sql --sink.sql.driver pgx --sink.sql.dsn postgres://... < docs.jsonl
//
// See the config package for every setting. The process exits non-zero if
// any batch failed to commit.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/MasterOfBinary/gocommit/buffer"
	"github.com/MasterOfBinary/gocommit/config"
	"github.com/MasterOfBinary/gocommit/metrics"
	"github.com/MasterOfBinary/gocommit/scheduler"
	"github.com/MasterOfBinary/gocommit/sink"
	"github.com/MasterOfBinary/gocommit/source"
)

// shutdownTimeout bounds the final flush and the metrics server shutdown.
const shutdownTimeout = 30 * time.Second

// errHadProblem is returned when at least one batch was dropped.
var errHadProblem = errors.New("one or more batches failed to commit")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, "gocommitd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader) (err error) {
	cfg, err := config.Load(viper.New(), config.Flags(), args)
	if err != nil {
		return err
	}

	zl, err := cfg.Log.Build()
	if err != nil {
		return err
	}
	defer func() {
		_ = zl.Sync()
	}()
	logger := buffer.WrapZap(zl)

	docs, closeSink, err := newSink(ctx, cfg.Sink, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeSink())
	}()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg, cfg.Metrics.Namespace)

	b := buffer.New[string, *source.Document](buffer.NewConstantConfig(&cfg.Buffer), docs).
		WithLogger(logger).
		WithStats(collector)
	metrics.RegisterBuffer(reg, cfg.Metrics.Namespace, b)

	s := scheduler.New(b, cfg.Scheduler.Interval).WithLogger(logger)
	if err := s.Start(ctx); err != nil {
		return err
	}

	srv := startMetricsServer(cfg.Metrics.Addr, reg, zl)

	pumpErr := pump(ctx, cfg.Source, stdin, b, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		pumpErr,
		s.Stop(),
		b.Close(shutdownCtx),
	)
	if srv != nil {
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	}

	stats := collector.GetStats()
	zl.Info("gocommitd finished",
		zap.Uint64("received", stats.ItemsReceived),
		zap.Uint64("superseded", stats.ItemsSuperseded),
		zap.Uint64("committed", stats.ItemsCommitted),
		zap.Uint64("failed", stats.ItemsFailed),
		zap.Uint64("flushes", stats.Flushes),
	)

	if b.HadProblem() {
		err = multierr.Append(err, errHadProblem)
	}
	return err
}

// pump feeds stdin into the buffer until EOF or cancellation. Cancellation
// is a normal shutdown and is not reported.
func pump(ctx context.Context, cfg config.SourceConfig, stdin io.Reader, b *buffer.Buffer[string, *source.Document], logger buffer.Logger) error {
	// The reader may stay blocked on stdin after Run returns; canceling
	// readCtx makes it exit at its next send.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := &source.Lines{Reader: stdin, KeyField: cfg.KeyField}
	records, errs := lines.Read(readCtx)

	go func() {
		for err := range errs {
			logger.Warn("Skipping input: %v", err)
		}
	}()

	p := &source.Channel[string, *source.Document]{
		Input:   records,
		Workers: cfg.Workers,
		Logger:  logger,
	}

	err := p.Run(ctx, b)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newSink builds the configured sink and a function that releases its
// resources.
func newSink(ctx context.Context, cfg config.SinkConfig, logger buffer.Logger) (buffer.Sink[*source.Document], func() error, error) {
	var (
		s       buffer.Sink[*source.Document]
		closeFn = func() error { return nil }
	)

	switch cfg.Kind {
	case config.SinkBadger:
		opts := badger.DefaultOptions(cfg.Badger.Path).WithLogger(nil)
		if cfg.Badger.Path == "" {
			opts = opts.WithInMemory(true)
		}

		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger: %w", err)
		}

		bs := sink.NewBadger[*source.Document](db, encodeDocument)
		bs.TTL = cfg.Badger.TTL
		s, closeFn = bs, db.Close

	case config.SinkSQL:
		db, err := openSQL(ctx, cfg.SQL)
		if err != nil {
			return nil, nil, err
		}

		s = &sink.SQL[*source.Document]{
			DB:          db,
			Table:       cfg.SQL.Table,
			Columns:     []string{"doc_key", "body"},
			Placeholder: sink.PlaceholderFor(cfg.SQL.Driver),
			Suffix:      "ON CONFLICT (doc_key) DO UPDATE SET body = excluded.body",
			Args:        documentArgs,
		}
		closeFn = db.Close

	default:
		s = buffer.SinkFunc[*source.Document](func(context.Context, []*source.Document) error {
			return nil
		})
	}

	return sink.WithLogging(sink.WithTimeout(s, cfg.Timeout), logger, cfg.Kind), closeFn, nil
}

func openSQL(ctx context.Context, cfg config.SQLConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (doc_key TEXT PRIMARY KEY, body TEXT NOT NULL)`, cfg.Table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create table %s: %w", cfg.Table, err), db.Close())
	}

	return db, nil
}

func encodeDocument(doc *source.Document) ([]byte, []byte, error) {
	return []byte(doc.Key), doc.Body, nil
}

func documentArgs(doc *source.Document) ([]any, error) {
	return []any{doc.Key, string(doc.Body)}, nil
}

// startMetricsServer serves /metrics on addr. It returns nil if addr is
// empty.
func startMetricsServer(addr string, reg *prometheus.Registry, zl *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("metrics server failed", zap.Error(err))
		}
	}()
	zl.Info("serving metrics", zap.String("addr", addr))

	return srv
}
