package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/config"
	"github.com/couchcryptid/space-weather-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes ingestion notices to a Kafka topic.
// It implements pipeline.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish sends one message per notice in a single WriteMessages call. Notices
// are keyed by event id so every notice for an event lands on one partition.
func (w *Writer) Publish(ctx context.Context, notices []domain.EventNotice) error {
	if len(notices) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(notices))
	for i := range notices {
		msg, err := serializeToMessage(notices[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d notices: %w", len(msgs), err)
	}
	w.logger.Debug("ingestion notices published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EventNotice into a Kafka message.
func serializeToMessage(n domain.EventNotice) (kafkago.Message, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize event notice: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(n.EventID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_kind", Value: []byte(n.Kind)},
			{Key: "run_id", Value: []byte(n.RunID)},
			{Key: "ingested_at", Value: []byte(n.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}
