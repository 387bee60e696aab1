package factory

import (
	"github.com/NewsFlash/internal/app"
	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/events"
	"github.com/NewsFlash/internal/feed"
	"github.com/NewsFlash/internal/infra/queue"
	"github.com/NewsFlash/pkg/config"
	"github.com/NewsFlash/pkg/logging"
	"go.mongodb.org/mongo-driver/mongo"
)

// NewPreferencePublisher announces interest changes over Kafka when it is enabled, so
// sessions on every instance refresh. Otherwise changes stay on the local bus.
func NewPreferencePublisher(bus *events.Bus, producer *queue.KafkaProducer) domain.PreferencePublisher {
	if producer != nil {
		return producer
	}
	return bus
}

// NewSessionManager creates the session manager. All feeds share one error sampler keyed
// by source, so an upstream outage is logged once per interval, not once per session.
func NewSessionManager(
	cfg *config.Config,
	newFetcher app.FetcherFactory,
	bus *events.Bus,
	publisher domain.PreferencePublisher,
) *app.SessionManager {
	return app.NewSessionManager(newFetcher, bus, publisher,
		feed.WithPrefetchDistance(cfg.PrefetchDistance),
		feed.WithFetchTimeout(cfg.FetchTimeout),
		feed.WithErrorSampler(logging.NewErrorSampler(10)),
		feed.WithSamplerKey(cfg.Source.Name),
	)
}

// NewReadinessWaiter waits for the dependencies this configuration actually uses.
func NewReadinessWaiter(cfg *config.Config, client *mongo.Client) *app.ReadinessWaiter {
	var deps []app.Dependency
	if client != nil {
		deps = append(deps, app.MongoDependency(client))
	}
	if cfg.KafkaEnabled {
		deps = append(deps, app.KafkaDependency(cfg.KafkaBrokers, cfg.KafkaPreferencesTopic))
	}
	return app.NewReadinessWaiter(deps...)
}
