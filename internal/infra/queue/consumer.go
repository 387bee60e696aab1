package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/infra/metrics"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer reads preference changes published by any instance.
type KafkaConsumer struct {
	reader messageReader
}

func NewKafkaConsumer(brokers []string, topic string, groupID string) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	slog.Info("Kafka Consumer initialized", "brokers", brokers, "topic", topic, "group", groupID)
	return &KafkaConsumer{reader: r}
}

type MessageHandler func(ctx context.Context, event domain.InterestsChanged) error

// Start blocks, handing every message to handler, until ctx is cancelled or the reader
// is closed.
func (c *KafkaConsumer) Start(ctx context.Context, handler MessageHandler) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				slog.Error("Error reading kafka message", "error", err)
			}
			return
		}

		var event domain.InterestsChanged
		if err := json.Unmarshal(m.Value, &event); err != nil {
			metrics.PreferenceEvents.WithLabelValues("kafka", "malformed").Inc()
			slog.Error("Error unmarshaling preference event", "error", err, "offset", m.Offset)
			continue
		}

		slog.Debug("Received preference event from Kafka", "user_id", event.UserID, "partition", m.Partition)

		if err := handler(ctx, event); err != nil {
			metrics.PreferenceEvents.WithLabelValues("kafka", "handler_error").Inc()
			slog.Error("Error handling preference event", "user_id", event.UserID, "error", err)
			continue
		}
		metrics.PreferenceEvents.WithLabelValues("kafka", "consumed").Inc()
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
