package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PaymentsEngine/internal/ledger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// SnapshotStreamName is the JetStream stream that retains published snapshots.
const SnapshotStreamName = "PAYMENTS_SNAPSHOTS"

// SnapshotMessage is the JSON payload of a published snapshot. Amounts are
// decimal strings with four fractional digits.
type SnapshotMessage struct {
	RunID     string                  `json:"run_id"`
	StateHash string                  `json:"state_hash"`
	CreatedAt time.Time               `json:"created_at"`
	Accounts  []ledger.AccountBalance `json:"accounts"`
}

func NewSnapshotMessage(snap *ledger.Snapshot) SnapshotMessage {
	accounts := snap.Accounts
	if accounts == nil {
		accounts = []ledger.AccountBalance{}
	}
	return SnapshotMessage{
		RunID:     snap.RunID.String(),
		StateHash: snap.StateHashHex(),
		CreatedAt: snap.CreatedAt.UTC(),
		Accounts:  accounts,
	}
}

// jsPublisher is the part of jetstream.JetStream the publisher needs.
type jsPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes the final snapshot of a run to a JetStream subject.
// The run id is the message id, so a retried publish is deduplicated by the
// server.
type NATSPublisher struct {
	js      jsPublisher
	subject string
	nc      *nats.Conn
	logger  zerolog.Logger
}

func NewNATSPublisher(js jsPublisher, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		js:      js,
		subject: subject,
		logger:  logger,
	}
}

// ConnectNATS dials url, makes sure the snapshot stream exists and returns a
// publisher that owns the connection.
func ConnectNATS(ctx context.Context, url, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("payments-engine"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}
	if err := EnsureSnapshotStream(ctx, js, subject, logger); err != nil {
		nc.Close()
		return nil, err
	}

	p := NewNATSPublisher(js, subject, logger)
	p.nc = nc
	return p, nil
}

// Export publishes snap and waits for the JetStream ack.
func (p *NATSPublisher) Export(ctx context.Context, snap *ledger.Snapshot) error {
	data, err := json.Marshal(NewSnapshotMessage(snap))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ack, err := p.js.Publish(ctx, p.subject, data, jetstream.WithMsgID(snap.RunID.String()))
	if err != nil {
		return fmt.Errorf("publish snapshot to %s: %w", p.subject, err)
	}

	p.logger.Debug().
		Str("subject", p.subject).
		Str("stream", ack.Stream).
		Uint64("stream_seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("snapshot published")
	return nil
}

// Close drains the connection if the publisher owns one.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// EnsureSnapshotStream creates (or updates) the stream capturing subject.
func EnsureSnapshotStream(ctx context.Context, js jetstream.JetStream, subject string, logger zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       SnapshotStreamName,
		Subjects:   []string{subject},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     30 * 24 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create snapshot stream: %w", err)
	}
	logger.Info().Str("stream", SnapshotStreamName).Str("subject", subject).Msg("ensured snapshot stream")
	return nil
}
