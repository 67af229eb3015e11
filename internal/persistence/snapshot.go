package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"PaymentsEngine/internal/ledger"
	fpmath "PaymentsEngine/internal/math"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// ErrRunNotFound is returned by LoadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// SnapshotStore persists the final balances of a run to Postgres.
// Each run is written in one transaction: the run row, then every account
// balance through COPY.
type SnapshotStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSnapshotStore(db *sql.DB, logger zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

// OpenSnapshotStore connects to dsn and, when migrationsDir is set, applies
// pending migrations. The store owns the connection; call Close.
func OpenSnapshotStore(ctx context.Context, dsn, migrationsDir string, logger zerolog.Logger) (*SnapshotStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if migrationsDir != "" {
		if _, err := NewMigrator(db, migrationsDir, logger).Up(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return NewSnapshotStore(db, logger), nil
}

// Export saves snap. Re-exporting the same run id replaces its balances.
func (s *SnapshotStore) Export(ctx context.Context, snap *ledger.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	locked := 0
	for _, b := range snap.Accounts {
		if b.Locked {
			locked++
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments.runs (run_id, state_hash, accounts, locked, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE
			SET state_hash = $2, accounts = $3, locked = $4, exported_at = NOW()
	`, snap.RunID, snap.StateHash[:], len(snap.Accounts), locked, snap.CreatedAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM payments.account_balances WHERE run_id = $1`, snap.RunID,
	); err != nil {
		return fmt.Errorf("clear balances: %w", err)
	}

	if err := copyBalances(ctx, tx, snap); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	s.logger.Debug().
		Str("run_id", snap.RunID.String()).
		Int("accounts", len(snap.Accounts)).
		Msg("snapshot saved")
	return nil
}

func copyBalances(ctx context.Context, tx *sql.Tx, snap *ledger.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("payments", "account_balances",
		"run_id", "client_id", "available", "held", "total", "locked"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	defer stmt.Close()

	runID := snap.RunID.String()
	for _, b := range snap.Accounts {
		if _, err := stmt.ExecContext(ctx,
			runID, int(b.Client), b.Available.String(), b.Held.String(), b.Total.String(), b.Locked,
		); err != nil {
			return fmt.Errorf("copy balance of client %d: %w", b.Client, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush copy: %w", err)
	}
	return nil
}

// LoadRun reads a saved run back, accounts sorted by client id.
func (s *SnapshotStore) LoadRun(ctx context.Context, runID uuid.UUID) (*ledger.Snapshot, error) {
	snap := &ledger.Snapshot{RunID: runID, Accounts: []ledger.AccountBalance{}}

	var hash []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT state_hash, created_at FROM payments.runs WHERE run_id = $1
	`, runID).Scan(&hash, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if len(hash) != len(snap.StateHash) {
		return nil, fmt.Errorf("load run: state hash has %d bytes", len(hash))
	}
	copy(snap.StateHash[:], hash)

	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, available::TEXT, held::TEXT, total::TEXT, locked
		FROM payments.account_balances
		WHERE run_id = $1
		ORDER BY client_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b ledger.AccountBalance
		var client int
		var available, held, total string
		if err := rows.Scan(&client, &available, &held, &total, &b.Locked); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		b.Client = uint16(client)
		for _, f := range []struct {
			dst *fpmath.Money
			src string
		}{{&b.Available, available}, {&b.Held, held}, {&b.Total, total}} {
			if *f.dst, err = fpmath.ParseMoney(f.src); err != nil {
				return nil, fmt.Errorf("client %d: %w", client, err)
			}
		}
		snap.Accounts = append(snap.Accounts, b)
	}
	return snap, rows.Err()
}

// LatestRunID returns the most recently created run.
func (s *SnapshotStore) LatestRunID(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id FROM payments.runs ORDER BY created_at DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrRunNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// Close closes the underlying connection pool.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
