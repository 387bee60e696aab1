package transformer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/NewsFlash/internal/domain"
)

const NewsAPIName = "newsapi"

// NewsAPIResponse mirrors the /v2/everything and /v2/top-headlines payloads.
type NewsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []NewsAPIArticle `json:"articles"`
}

type NewsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// NewsAPITransformer parses NewsAPI responses. It does not know the requested page, so
// the returned PageInfo only carries TotalResults.
type NewsAPITransformer struct {
	now func() time.Time
}

func NewNewsAPITransformer() *NewsAPITransformer {
	return &NewsAPITransformer{now: time.Now}
}

func (t *NewsAPITransformer) Transform(reader io.Reader) ([]domain.Article, *domain.PageInfo, error) {
	var resp NewsAPIResponse
	if err := json.NewDecoder(reader).Decode(&resp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode newsapi response: %w", err)
	}
	// Developer plans stop paging after a fixed number of results.
	if resp.Code == "maximumResultsReached" {
		return []domain.Article{}, &domain.PageInfo{}, nil
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, nil, fmt.Errorf("newsapi error %s: %s", resp.Code, resp.Message)
	}

	fetchedAt := t.now().UTC()
	articles := make([]domain.Article, 0, len(resp.Articles))
	for _, na := range resp.Articles {
		// NewsAPI blanks out takedown requests instead of dropping them.
		if na.URL == "" || na.Title == "[Removed]" {
			continue
		}
		articles = append(articles, t.normalize(na, fetchedAt))
	}

	return articles, &domain.PageInfo{TotalResults: resp.TotalResults}, nil
}

func (t *NewsAPITransformer) normalize(na NewsAPIArticle, fetchedAt time.Time) domain.Article {
	var published time.Time
	if na.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, na.PublishedAt); err == nil {
			published = ts.UTC()
		}
	}

	a := domain.Article{
		ID:          domain.ArticleID(NewsAPIName, na.URL),
		Source:      NewsAPIName,
		Publisher:   na.Source.Name,
		Author:      strings.TrimSpace(na.Author),
		Title:       strings.TrimSpace(na.Title),
		Description: strings.TrimSpace(na.Description),
		Content:     na.Content,
		URL:         na.URL,
		ImageURL:    na.URLToImage,
		PublishedAt: published,
		FetchedAt:   fetchedAt,
	}
	a.ContentHash = a.ComputeHash()
	return a
}
