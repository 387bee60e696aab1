// Package factory provides dependency injection constructors for infrastructure components.
package factory

import (
	"context"
	"errors"
	"time"

	"github.com/NewsFlash/internal/events"
	"github.com/NewsFlash/internal/infra/queue"
	"github.com/NewsFlash/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
)

// NeedsMongo reports whether the configuration reads from or writes to the archive.
func NeedsMongo(cfg *config.Config) bool {
	return cfg.ArchiveEnabled || cfg.Source.Name == config.ArchiveSource
}

// NewMongoClient creates a MongoDB client with lifecycle management. It returns a nil
// client when the archive is not used.
func NewMongoClient(lc fx.Lifecycle, cfg *config.Config) (*mongo.Client, error) {
	if !NeedsMongo(cfg) {
		return nil, nil
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("mongo URI not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client, nil
}

// NewEventBus creates the process-wide event bus.
func NewEventBus(lc fx.Lifecycle) *events.Bus {
	bus := events.NewBus()
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			bus.Close()
			return nil
		},
	})
	return bus
}

// NewKafkaProducer creates the producer for preference changes, or nil when Kafka is
// disabled.
func NewKafkaProducer(cfg *config.Config, lc fx.Lifecycle) (*queue.KafkaProducer, error) {
	if !cfg.KafkaEnabled {
		return nil, nil
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.KafkaPreferencesTopic == "" {
		return nil, errors.New("kafka preferences topic not configured")
	}

	producer := queue.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaPreferencesTopic)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})
	return producer, nil
}

// NewKafkaConsumer creates the consumer for preference changes, or nil when Kafka is
// disabled.
func NewKafkaConsumer(cfg *config.Config, lc fx.Lifecycle) (*queue.KafkaConsumer, error) {
	if !cfg.KafkaEnabled {
		return nil, nil
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}

	consumer := queue.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaPreferencesTopic, cfg.KafkaGroupID)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return consumer.Close()
		},
	})
	return consumer, nil
}
