package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"PaymentsEngine/internal/ledger"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// AccountMessage is the Kafka value for one account of a snapshot.
type AccountMessage struct {
	RunID     string `json:"run_id"`
	StateHash string `json:"state_hash"`
	ledger.AccountBalance
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per account, keyed by client id, so all
// snapshots of a client land on the same partition in run order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

// Export writes every account of snap in a single batch.
func (p *KafkaPublisher) Export(ctx context.Context, snap *ledger.Snapshot) error {
	if len(snap.Accounts) == 0 {
		return nil
	}

	runID := snap.RunID.String()
	stateHash := snap.StateHashHex()

	msgs := make([]kafka.Message, 0, len(snap.Accounts))
	for _, acct := range snap.Accounts {
		value, err := json.Marshal(AccountMessage{RunID: runID, StateHash: stateHash, AccountBalance: acct})
		if err != nil {
			return fmt.Errorf("marshal account %d: %w", acct.Client, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatUint(uint64(acct.Client), 10)),
			Value: value,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug().Str("topic", p.topic).Int("messages", len(msgs)).Msg("snapshot published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
