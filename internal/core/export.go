package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PaymentsEngine/internal/ledger"

	"github.com/rs/zerolog"
)

// SnapshotExporter ships the final snapshot of a run to an external system.
type SnapshotExporter interface {
	Export(ctx context.Context, snap *ledger.Snapshot) error
}

// NamedExporter pairs an exporter with the name used in logs and errors.
type NamedExporter struct {
	Name     string
	Exporter SnapshotExporter
}

// ExportSnapshot runs every exporter in order, each bounded by timeout
// (no bound when timeout <= 0). All exporters are attempted; the returned
// error joins every failure.
func ExportSnapshot(ctx context.Context, snap *ledger.Snapshot, timeout time.Duration, logger zerolog.Logger, exporters ...NamedExporter) error {
	var errs []error
	for _, ne := range exporters {
		start := time.Now()

		exportCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			exportCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := ne.Exporter.Export(exportCtx, snap)
		cancel()

		if err != nil {
			logger.Error().Err(err).Str("exporter", ne.Name).Msg("snapshot export failed")
			errs = append(errs, fmt.Errorf("export to %s: %w", ne.Name, err))
			continue
		}
		logger.Info().
			Str("exporter", ne.Name).
			Int("accounts", len(snap.Accounts)).
			Dur("took", time.Since(start)).
			Msg("snapshot exported")
	}
	return errors.Join(errs...)
}
