package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/feed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository archives fetched articles and serves them back page by page.
type MongoRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	pageSize   int
}

func NewMongoRepository(client *mongo.Client, dbName, collectionName string, pageSize int) (*MongoRepository, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	db := client.Database(dbName)
	repo := &MongoRepository{
		db:         db,
		collection: db.Collection(collectionName),
		pageSize:   pageSize,
	}

	if err := repo.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "published_at", Value: -1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("published_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "source", Value: 1},
				{Key: "published_at", Value: -1},
			},
			Options: options.Index().SetName("source_published_at_idx"),
		},
	}

	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)
	_, err := r.collection.Indexes().CreateMany(ctx, models, opts)
	return err
}

func (r *MongoRepository) Upsert(ctx context.Context, article *domain.Article) error {
	filter := bson.M{"_id": article.ID}
	update := bson.M{"$set": article}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}
	return nil
}

func (r *MongoRepository) BulkUpsert(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(articles))
	for _, article := range articles {
		filter := bson.M{"_id": article.ID}
		update := bson.M{"$set": article}
		model := mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true)
		models = append(models, model)
	}

	opts := options.BulkWrite().SetOrdered(false)
	_, err := r.collection.BulkWrite(ctx, models, opts)
	if err != nil {
		return fmt.Errorf("failed to bulk upsert articles: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetContentHashes(ctx context.Context, ids []string) (map[string]string, error) {
	filter := bson.M{"_id": bson.M{"$in": ids}}
	opts := options.Find()
	// Only fetch _id and content_hash
	opts.SetProjection(bson.M{"_id": 1, "content_hash": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			slog.Warn("Failed to close cursor", "error", err)
		}
	}()

	results := make(map[string]string)
	for cursor.Next(ctx) {
		var doc struct {
			ID          string `bson:"_id"`
			ContentHash string `bson:"content_hash"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue // Skip malformed
		}
		results[doc.ID] = doc.ContentHash
	}
	return results, cursor.Err()
}

// FetchPage serves archived articles newest first, so a feed can be read offline.
func (r *MongoRepository) FetchPage(ctx context.Context, req feed.PageRequest) (feed.PageResult[domain.Article], error) {
	if req.Page < 1 {
		return feed.PageResult[domain.Article]{}, fmt.Errorf("invalid page %d", req.Page)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "published_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((req.Page - 1) * r.pageSize)).
		SetLimit(int64(r.pageSize))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return feed.PageResult[domain.Article]{}, fmt.Errorf("failed to query archive page %d: %w", req.Page, err)
	}

	articles := make([]domain.Article, 0, r.pageSize)
	if err := cursor.All(ctx, &articles); err != nil {
		return feed.PageResult[domain.Article]{}, fmt.Errorf("failed to decode archive page %d: %w", req.Page, err)
	}
	return feed.PageResult[domain.Article]{Items: articles}, nil
}
