package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PaymentsEngine/internal/core"
	"PaymentsEngine/internal/ingestion"
	"PaymentsEngine/internal/ledger"
	"PaymentsEngine/internal/observability"
	"PaymentsEngine/internal/persistence"
	"PaymentsEngine/internal/report"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const usage = `Usage: payments <transactions.csv> > accounts.csv

Environment:
  PAYMENTS_TX_LOG          transaction log path (default: transactions.log)
  PAYMENTS_LOG_LEVEL       debug|info|warn|error (default: info)
  PAYMENTS_METRICS_FILE    write Prometheus metrics to this file after the run
  PAYMENTS_POSTGRES_DSN    save the final snapshot to Postgres
  PAYMENTS_MIGRATIONS_DIR  apply migrations from this directory first
  PAYMENTS_NATS_URL        publish the final snapshot to NATS JetStream
  PAYMENTS_NATS_SUBJECT    (default: payments.snapshots)
  PAYMENTS_KAFKA_BROKERS   publish final balances to Kafka (comma separated)
  PAYMENTS_KAFKA_TOPIC     (default: payments.balances)
  PAYMENTS_EXPORT_TIMEOUT  per-exporter timeout (default: 30s)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process exit: 0 on completion, 1 on a fatal
// error, 2 on bad usage.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	runID := uuid.New()
	logger := observability.NewLoggerTo(stderr, "payments", cfg.LogLevel).
		With().Str("run_id", runID.String()).Logger()

	if err := execute(ctx, cfg, runID, args[0], stdout, logger); err != nil {
		logger.Error().Err(err).Msg("run failed")
		return 1
	}
	return 0
}

func execute(ctx context.Context, cfg Config, runID uuid.UUID, path string, stdout io.Writer, logger zerolog.Logger) error {
	input, err := openInput(path)
	if err != nil {
		return err
	}
	defer input.Close()

	txLog, err := observability.CreateTxLog(cfg.TxLogPath)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := ledger.NewAccountStore()
	proc := core.NewProcessor(store, metrics, logger)

	logger.Info().Str("input", path).Str("tx_log", cfg.TxLogPath).Msg("processing transactions")

	summary, err := proc.Run(ctx, ingestion.NewCSVSource(bufio.NewReader(input)), txLog)
	if closeErr := txLog.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	snap := store.Snapshot(runID, summary.StateHash, time.Now().UTC())
	if err := report.WriteBalances(stdout, snap.Accounts); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	// Exporters that connected still receive the snapshot when another one
	// failed to connect; the run fails either way.
	exporters, closeExporters, openErr := openExporters(ctx, cfg, logger)
	defer closeExporters()
	return errors.Join(openErr, core.ExportSnapshot(ctx, snap, cfg.ExportTimeout, logger, exporters...))
}

func openInput(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("input: %s is not a regular file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return f, nil
}

// openExporters connects every configured exporter. The returned close
// function is always safe to call.
func openExporters(ctx context.Context, cfg Config, logger zerolog.Logger) ([]core.NamedExporter, func(), error) {
	var (
		exporters []core.NamedExporter
		closers   []io.Closer
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn().Err(err).Msg("close exporter")
			}
		}
	}

	connectCtx := ctx
	if cfg.ExportTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ExportTimeout)
		defer cancel()
	}

	var errs []error

	if cfg.PostgresDSN != "" {
		store, err := persistence.OpenSnapshotStore(connectCtx, cfg.PostgresDSN, cfg.MigrationsDir,
			logger.With().Str("exporter", "postgres").Logger())
		if err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		} else {
			exporters = append(exporters, core.NamedExporter{Name: "postgres", Exporter: store})
			closers = append(closers, store)
		}
	}

	if cfg.NATSURL != "" {
		pub, err := ingestion.ConnectNATS(connectCtx, cfg.NATSURL, cfg.NATSSubject,
			logger.With().Str("exporter", "nats").Logger())
		if err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		} else {
			exporters = append(exporters, core.NamedExporter{Name: "nats", Exporter: pub})
			closers = append(closers, pub)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := ingestion.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic,
			logger.With().Str("exporter", "kafka").Logger())
		exporters = append(exporters, core.NamedExporter{Name: "kafka", Exporter: pub})
		closers = append(closers, pub)
	}

	return exporters, closeAll, errors.Join(errs...)
}
