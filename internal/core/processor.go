package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"PaymentsEngine/internal/event"
	"PaymentsEngine/internal/ledger"
	"PaymentsEngine/internal/observability"

	"github.com/rs/zerolog"
)

// RecordSource yields decoded records in arrival order. Next returns io.EOF
// after the last record. Errors wrapping event.ErrMalformedRecord reject a
// single record; any other error aborts the run.
type RecordSource interface {
	Next() (event.Transaction, error)
}

// OutcomeSink receives exactly one outcome per record.
type OutcomeSink interface {
	Success(record uint64) error
	Failure(record uint64, reason error) error
}

// Summary describes a finished (or interrupted) run.
type Summary struct {
	Records   uint64
	Applied   uint64
	Rejected  uint64
	Accounts  int
	Locked    int
	StateHash [32]byte
}

// Processor is the single-threaded ingestion loop. Records are applied
// strictly one at a time: the effect of record N is fully visible, or fully
// absent, before record N+1 is read.
type Processor struct {
	store     *ledger.AccountStore
	engine    *Engine
	validator *ledger.InvariantValidator
	hasher    *StateHasher
	metrics   *observability.Metrics
	logger    zerolog.Logger

	summary Summary
}

// NewProcessor wires a processor around store. metrics may be nil.
func NewProcessor(store *ledger.AccountStore, metrics *observability.Metrics, logger zerolog.Logger) *Processor {
	return &Processor{
		store:     store,
		engine:    NewEngine(),
		validator: ledger.NewInvariantValidator(store),
		hasher:    NewStateHasher(),
		metrics:   metrics,
		logger:    logger,
	}
}

// Run drains src, applying each record and reporting its outcome to sink.
// A rejected record never stops the run; a source or sink I/O error does,
// with every record applied so far left intact.
func (p *Processor) Run(ctx context.Context, src RecordSource, sink OutcomeSink) (Summary, error) {
	for {
		if err := ctx.Err(); err != nil {
			return p.Summary(), fmt.Errorf("processing stopped after record %d: %w", p.summary.Records, err)
		}

		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		record := p.summary.Records + 1
		p.summary.Records = record

		if err != nil {
			if !errors.Is(err, event.ErrMalformedRecord) {
				return p.Summary(), fmt.Errorf("read record %d: %w", record, err)
			}
			rej := &RejectError{Record: record, Reason: MalformedRecord, Detail: err.Error()}
			p.recordRejected(rej)
			if err := sink.Failure(record, rej); err != nil {
				return p.Summary(), fmt.Errorf("log record %d: %w", record, err)
			}
			continue
		}

		if err := p.ProcessRecord(record, tx); err != nil {
			if err := sink.Failure(record, err); err != nil {
				return p.Summary(), fmt.Errorf("log record %d: %w", record, err)
			}
			continue
		}
		if err := sink.Success(record); err != nil {
			return p.Summary(), fmt.Errorf("log record %d: %w", record, err)
		}
	}

	summary := p.Summary()
	p.logger.Info().
		Uint64("records", summary.Records).
		Uint64("applied", summary.Applied).
		Uint64("rejected", summary.Rejected).
		Int("accounts", summary.Accounts).
		Int("locked", summary.Locked).
		Hex("state_hash", summary.StateHash[:]).
		Msg("all records processed")

	return summary, nil
}

// ProcessRecord applies one record at position record (1-based). It returns
// nil or a *RejectError.
func (p *Processor) ProcessRecord(record uint64, tx event.Transaction) error {
	start := time.Now()
	txType := tx.Type.String()

	acct := p.store.GetOrCreate(tx.Client)

	if err := p.engine.Apply(acct, tx); err != nil {
		var rej *RejectError
		if !errors.As(err, &rej) {
			rej = &RejectError{Client: tx.Client, TxID: tx.TxID, Type: tx.Type, Reason: UnsupportedTransaction, Detail: err.Error()}
		}
		rej.Record = record
		p.recordRejected(rej)
		return rej
	}

	// Post-check: a broken invariant here is a bug in the engine, not bad input.
	if err := p.validator.ValidateBalance(acct); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated at record %d: %v", record, err))
	}

	p.hasher.Fold(record, acct)
	p.summary.Applied++

	if p.metrics != nil {
		p.metrics.RecordsApplied.WithLabelValues(txType).Inc()
		p.metrics.ApplyDuration.WithLabelValues(txType).Observe(time.Since(start).Seconds())
		p.metrics.CoreSequence.Set(float64(record))
		p.metrics.Accounts.Set(float64(p.store.Len()))
		if tx.Type == event.TxTypeChargeback {
			p.metrics.AccountsLocked.Inc()
		}
	}

	return nil
}

func (p *Processor) recordRejected(rej *RejectError) {
	p.summary.Rejected++

	p.logger.Debug().
		Uint64("record", rej.Record).
		Uint16("client", rej.Client).
		Uint32("tx", rej.TxID).
		Str("type", rej.Type.String()).
		Str("reason", rej.Reason.Label()).
		Msg("record rejected")

	if p.metrics != nil {
		p.metrics.RecordsRejected.WithLabelValues(rej.Type.String(), rej.Reason.Label()).Inc()
		p.metrics.CoreSequence.Set(float64(rej.Record))
		p.metrics.Accounts.Set(float64(p.store.Len()))
	}
}

// Summary returns the counters so far along with the current account totals.
func (p *Processor) Summary() Summary {
	s := p.summary
	s.Accounts = p.store.Len()
	s.Locked = p.store.LockedCount()
	s.StateHash = p.hasher.Tip()
	return s
}

// Store returns the account store the processor mutates.
func (p *Processor) Store() *ledger.AccountStore {
	return p.store
}
