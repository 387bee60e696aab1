package transformer

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/NewsFlash/internal/domain"
)

type DummyTransformer struct{}

func NewDummyTransformer() *DummyTransformer {
	return &DummyTransformer{}
}

// Dummy payload structure served by cmd/mock-feed at /feed.
type DummyArticle struct {
	ID        string `json:"id"`
	Headline  string `json:"headline"`
	Content   string `json:"content"`
	Image     string `json:"image"`
	Timestamp string `json:"timestamp"`
}

type DummyResponse struct {
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
	Items    []DummyArticle `json:"items"`
}

func (t *DummyTransformer) Transform(reader io.Reader) ([]domain.Article, *domain.PageInfo, error) {
	var resp DummyResponse
	if err := json.NewDecoder(reader).Decode(&resp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode dummy response: %w", err)
	}

	articles := make([]domain.Article, 0, len(resp.Items))
	for _, item := range resp.Items {
		ts, _ := time.Parse(time.RFC3339, item.Timestamp)
		a := domain.Article{
			ID:          "dummy_" + item.ID,
			Source:      "dummy",
			Publisher:   "Mock Feed",
			Title:       item.Headline,
			Description: summarize(item.Content, 80),
			Content:     item.Content,
			URL:         "http://dummy/" + item.ID,
			ImageURL:    item.Image,
			PublishedAt: ts,
		}
		a.ContentHash = a.ComputeHash()
		articles = append(articles, a)
	}

	pageInfo := &domain.PageInfo{
		Page:         resp.Page,
		PageSize:     resp.PageSize,
		TotalResults: resp.Total,
	}
	return articles, pageInfo, nil
}

func summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
