package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/NewsFlash/internal/feed"
)

// PlaceholderImage is shown for articles without a usable image URL.
const PlaceholderImage = "placeholder://news-image"

// Article is one news item as shown in a feed row.
type Article struct {
	ID          string    `json:"id" bson:"_id"`
	Source      string    `json:"source" bson:"source"` // provider name, e.g. "newsapi"
	Publisher   string    `json:"publisher" bson:"publisher"`
	Author      string    `json:"author,omitempty" bson:"author,omitempty"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Content     string    `json:"content,omitempty" bson:"content,omitempty"`
	URL         string    `json:"url" bson:"url"`
	ImageURL    string    `json:"image_url,omitempty" bson:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at" bson:"published_at"`
	FetchedAt   time.Time `json:"fetched_at" bson:"fetched_at"`
	ContentHash string    `json:"content_hash" bson:"content_hash"`
}

// ComputeHash returns a deterministic hash of the article's visible content.
// Timestamps are left out so a re-fetch of unchanged content hashes the same.
func (a *Article) ComputeHash() string {
	hasher := sha256.New()
	hasher.Write([]byte(a.Source))
	hasher.Write([]byte(a.URL))
	hasher.Write([]byte(a.Title))
	hasher.Write([]byte(a.Description))
	hasher.Write([]byte(a.Content))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Image returns the image to render for the article, falling back to PlaceholderImage.
func (a *Article) Image() string {
	u := strings.TrimSpace(a.ImageURL)
	if u == "" || !(strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) {
		return PlaceholderImage
	}
	return u
}

// ArticleID derives a stable ID from a source name and the article URL, for APIs that
// do not expose their own identifiers.
func ArticleID(source, url string) string {
	sum := sha256.Sum256([]byte(url))
	return source + "_" + hex.EncodeToString(sum[:8])
}

// PageInfo is the pagination metadata some APIs return next to a page of articles.
type PageInfo struct {
	Page         int
	PageSize     int
	TotalResults int
}

// HasMore reports whether pages exist after this one. Unknown totals count as more.
func (p *PageInfo) HasMore() bool {
	if p == nil || p.TotalResults <= 0 || p.PageSize <= 0 {
		return true
	}
	return p.Page*p.PageSize < p.TotalResults
}

// ArticleFetcher is the fetch capability a news feed is built on.
type ArticleFetcher = feed.Fetcher[Article]

// ArticleFeed is a paged feed of articles.
type ArticleFeed = feed.Feed[Article]

// Transformer parses a provider payload into articles.
type Transformer interface {
	Transform(reader io.Reader) ([]Article, *PageInfo, error)
}

// ArticleWriter handles article persistence operations.
type ArticleWriter interface {
	Upsert(ctx context.Context, article *Article) error
	BulkUpsert(ctx context.Context, articles []Article) error
}

// HashReader handles content hash retrieval for change detection.
type HashReader interface {
	GetContentHashes(ctx context.Context, ids []string) (map[string]string, error)
}

// Archive stores fetched articles.
type Archive interface {
	ArticleWriter
	HashReader
}
