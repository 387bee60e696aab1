package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Dependency is something the server must reach before it accepts sessions.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

// ReadinessWaiter polls dependencies until each one answers.
type ReadinessWaiter struct {
	deps     []Dependency
	interval time.Duration
}

func NewReadinessWaiter(deps ...Dependency) *ReadinessWaiter {
	return &ReadinessWaiter{deps: deps, interval: 2 * time.Second}
}

// WaitForDependencies blocks until every dependency is ready or ctx ends. There is no
// timeout of its own: slow dependencies in development should not crash the service.
func (w *ReadinessWaiter) WaitForDependencies(ctx context.Context) error {
	for _, dep := range w.deps {
		if err := w.waitFor(ctx, dep); err != nil {
			return err
		}
	}
	return nil
}

func (w *ReadinessWaiter) waitFor(ctx context.Context, dep Dependency) error {
	slog.Info("Waiting for dependency", "dependency", dep.Name)
	if err := dep.Check(ctx); err == nil {
		slog.Info("Dependency is ready", "dependency", dep.Name)
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := dep.Check(ctx); err != nil {
				slog.Warn("Dependency not ready yet", "dependency", dep.Name, "error", err)
				continue
			}
			slog.Info("Dependency is ready", "dependency", dep.Name)
			return nil
		}
	}
}

// MongoDependency pings the primary.
func MongoDependency(client *mongo.Client) Dependency {
	return Dependency{
		Name: "mongodb",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
	}
}

// KafkaDependency checks that every broker accepts connections and the topic exists.
func KafkaDependency(brokers []string, topic string) Dependency {
	return Dependency{
		Name: "kafka",
		Check: func(ctx context.Context) error {
			return checkKafka(brokers, topic)
		},
	}
}

func checkKafka(brokers []string, topic string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	for _, broker := range brokers {
		conn, err := net.DialTimeout("tcp", broker, 2*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to broker %s: %w", broker, err)
		}
		_ = conn.Close()
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return fmt.Errorf("failed to read partitions for topic %s: %w", topic, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", topic)
	}
	return nil
}
