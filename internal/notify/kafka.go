package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"legend-tracker/internal/constants"
	"legend-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes trophy changes keyed by player tag so one player's events stay in
// order on a single partition.
type KafkaNotifier struct {
	changes messageWriter
	resets  messageWriter
	logger  zerolog.Logger
}

func NewKafkaNotifier(brokers []string, logger zerolog.Logger) *KafkaNotifier {
	logger = logger.With().Str("sink", "kafka").Logger()
	logger.Info().Strs("brokers", brokers).Msg("kafka notifier configured")
	return &KafkaNotifier{
		changes: newWriter(brokers, constants.TrophyChangeTopic),
		resets:  newWriter(brokers, constants.SeasonResetTopic),
		logger:  logger,
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
}

func (n *KafkaNotifier) TrophyChange(ctx context.Context, ev domain.ChangeEvent) error {
	return n.write(ctx, n.changes, ev.PlayerTag, ev)
}

func (n *KafkaNotifier) SeasonReset(ctx context.Context, ev domain.SeasonResetEvent) error {
	return n.write(ctx, n.resets, ev.ID, ev)
}

func (n *KafkaNotifier) write(ctx context.Context, w messageWriter, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data}); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	err1 := n.changes.Close()
	err2 := n.resets.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
