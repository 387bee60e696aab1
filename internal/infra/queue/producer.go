package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/infra/metrics"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes preference changes so feeds on every instance can react.
type KafkaProducer struct {
	writer messageWriter
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{}, // Same user, same partition: changes stay ordered per user
	}
	slog.Info("Kafka Producer initialized", "brokers", brokers, "topic", topic)
	return &KafkaProducer{writer: w}
}

func (p *KafkaProducer) PublishInterests(ctx context.Context, event domain.InterestsChanged) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.PreferenceEvents.WithLabelValues("kafka", "publish_error").Inc()
		slog.Error("Failed to write to kafka", "error", err)
		return err
	}

	metrics.PreferenceEvents.WithLabelValues("kafka", "published").Inc()
	slog.Debug("Published interests change to Kafka", "user_id", event.UserID)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
