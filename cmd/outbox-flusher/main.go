// Command outbox-flusher runs the periodic outbox flusher as a standalone
// daemon: it selects due entries, runs them via an operator-supplied
// Instantiator, retries failures, and reaps expired processed rows.
//
// Grounded on the teacher's cmd/outbox-worker/main.go daemon shape (config,
// logger, signal-aware run loop) and outboxworker/run.go's DB wiring.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"

	"github.com/txoutbox/txoutbox/internal/config"
	"github.com/txoutbox/txoutbox/internal/outbox"
	"github.com/txoutbox/txoutbox/internal/outbox/dialect/mysql"
	"github.com/txoutbox/txoutbox/internal/outbox/dialect/postgres"
	"github.com/txoutbox/txoutbox/internal/outbox/dialect/sqlite"
	outboxmetrics "github.com/txoutbox/txoutbox/internal/outbox/metrics"
)

// newLogger configures zerolog to marshal github.com/pkg/errors stack traces
// (teacher's internal/logger/logger.go convention), scoped to this one
// binary rather than a shared package since outboxctl has no use for it
// (its errors surface as plain CLI output, matching the teacher's
// cmd/memoryctl/main.go).
func newLogger(serviceName string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); ok {
			return err
		}
		return pkgerrors.WithStack(err)
	}
	return zerolog.New(os.Stdout).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

func main() {
	log := newLogger("outbox-flusher")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	dialect, db, err := openDialect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := outbox.Migrate(ctx, db, dialect, cfg.TableName); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	registerer := prometheus.NewRegistry()
	metricsListener := outboxmetrics.NewListener(registerer)
	listener := outbox.MultiListener{outbox.LoggingListener{Log: log}, metricsListener}

	// Handler wiring is deployment-specific: a real operator registers their
	// own outbox.Instantiator before constructing the Outbox. This binary
	// ships an empty Registry so it starts and serves /metrics even with no
	// handlers wired, which is still useful for schema migration and GC.
	registry := outbox.NewRegistry()

	ob, err := outbox.New(outbox.Options{
		DB:                      db,
		Dialect:                 dialect,
		TableName:               cfg.TableName,
		Instantiator:            registry,
		Listener:                listener,
		Log:                     log,
		WriteLockTimeoutSeconds: cfg.WriteLockTimeoutSeconds,
		BlocklistAfterAttempts:  cfg.BlocklistAfterAttempts,
		RetentionThreshold:      cfg.RetentionThreshold,
		FlushBatchSize:          cfg.FlushBatchSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("construct outbox")
	}

	flusher := outbox.NewFlusher(ob, outbox.FlusherConfig{
		AttemptFrequency:   cfg.AttemptFrequency,
		GCInterval:         cfg.GCInterval,
		BatchSize:          cfg.FlushBatchSize,
		RetentionThreshold: cfg.RetentionThreshold,
	})
	if err := flusher.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start flusher")
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	log.Info().Str("dialect", dialect.Name()).Msg("outbox-flusher started")
	<-ctx.Done()
	log.Info().Msg("shutting down")

	stopCtx := context.Background()
	if err := flusher.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("stop flusher")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(stopCtx)
	}
}

func openDialect(cfg *config.Config) (outbox.Dialect, *sql.DB, error) {
	switch cfg.Dialect {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		return postgres.New(), db, err
	case "mysql":
		db, err := mysql.Open(cfg.MySQLDSN)
		return mysql.New8(), db, err
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		db, err := sqlite.Open(path)
		return sqlite.New(), db, err
	default:
		return nil, nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}
}
