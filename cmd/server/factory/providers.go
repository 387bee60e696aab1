package factory

import (
	"errors"
	"log/slog"

	"github.com/NewsFlash/internal/app"
	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/infra/provider"
	"github.com/NewsFlash/internal/infra/repository"
	"github.com/NewsFlash/internal/infra/transformer"
	"github.com/NewsFlash/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
)

// NewMongoRepository creates the article archive. It returns nil when there is no client.
func NewMongoRepository(client *mongo.Client, cfg *config.Config) (*repository.MongoRepository, error) {
	if client == nil {
		return nil, nil
	}
	if cfg.MongoDBName == "" {
		return nil, errors.New("mongo database name not configured")
	}
	if cfg.MongoColl == "" {
		return nil, errors.New("mongo collection name not configured")
	}
	return repository.NewMongoRepository(client, cfg.MongoDBName, cfg.MongoColl, cfg.Source.Pagination.DefaultLimit)
}

// NewFetcherFactory builds the fetch capability every session uses. The archive source
// reads stored articles; every other source goes to its HTTP API, instrumented and,
// when enabled, archived on the way.
func NewFetcherFactory(cfg *config.Config, repo *repository.MongoRepository) (app.FetcherFactory, error) {
	source := cfg.Source
	if source.Name == config.ArchiveSource {
		if repo == nil {
			return nil, errors.New("archive source requires mongo")
		}
		slog.Info("Serving feeds from the archive", "collection", cfg.MongoColl)
		fetcher := provider.NewInstrumented(source.Name, repo)
		return func([]string) domain.ArticleFetcher { return fetcher }, nil
	}

	tr, err := transformer.GetTransformer(source.Transformer)
	if err != nil {
		return nil, err
	}
	p := provider.NewGenericProvider(source, tr)
	slog.Info("Registered provider", "provider", source.Name, "transformer", source.Transformer, "archive", repo != nil)

	return func(interests []string) domain.ArticleFetcher {
		var fetcher domain.ArticleFetcher = provider.NewInstrumented(source.Name, p.WithQuery(domain.InterestsQuery(interests)))
		if repo != nil {
			fetcher = provider.NewArchiving(source.Name, fetcher, repo)
		}
		return fetcher
	}, nil
}
