package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/feed"
	"github.com/NewsFlash/pkg/config"
	"github.com/sony/gobreaker"
)

// ErrClientStatus marks 4xx responses, which are not retried.
var ErrClientStatus = errors.New("provider: client error status")

// GenericProvider fetches pages of articles from an HTTP news API.
type GenericProvider struct {
	name        string
	url         string
	apiKey      string
	client      *http.Client
	transformer domain.Transformer
	pagination  config.PaginationConfig
	cb          *gobreaker.CircuitBreaker
	maxRetries  int
	backoff     time.Duration

	// lastPage holds, per query, the final page according to the totals the API reported.
	mu       sync.Mutex
	lastPage map[string]int
}

func NewGenericProvider(source config.SourceConfig, transformer domain.Transformer) *GenericProvider {
	cbSettings := gobreaker.Settings{
		Name:        source.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if we have 3 consecutive failures
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// A bad request says nothing about the health of the upstream.
			return err == nil || errors.Is(err, ErrClientStatus) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("CircuitBreaker state changed", "name", name, "from", from, "to", to)
		},
	}

	return &GenericProvider{
		name:   source.Name,
		url:    source.URL,
		apiKey: source.APIKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		transformer: transformer,
		pagination:  source.Pagination,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
		maxRetries:  3,
		backoff:     500 * time.Millisecond,
		lastPage:    make(map[string]int),
	}
}

// FetchPage fetches a page without a search query.
func (p *GenericProvider) FetchPage(ctx context.Context, req feed.PageRequest) (feed.PageResult[domain.Article], error) {
	return p.fetchPage(ctx, req.Page, "")
}

// WithQuery returns a fetcher that sends query with every page request. It shares the
// HTTP client and circuit breaker of p.
func (p *GenericProvider) WithQuery(query string) domain.ArticleFetcher {
	return feed.FetcherFunc[domain.Article](func(ctx context.Context, req feed.PageRequest) (feed.PageResult[domain.Article], error) {
		return p.fetchPage(ctx, req.Page, query)
	})
}

func (p *GenericProvider) fetchPage(ctx context.Context, page int, query string) (feed.PageResult[domain.Article], error) {
	if page < 1 {
		return feed.PageResult[domain.Article]{}, fmt.Errorf("invalid page %d", page)
	}

	if last, ok := p.knownLastPage(query); ok && page > last {
		slog.Debug("Page past reported total, not fetching", "provider", p.name, "page", page, "last_page", last)
		return feed.PageResult[domain.Article]{Items: []domain.Article{}}, nil
	}

	pageURL, err := p.buildPageURL(page, query)
	if err != nil {
		return feed.PageResult[domain.Article]{}, err
	}

	articles, info, err := p.fetchSinglePage(ctx, pageURL, page)
	if err != nil {
		return feed.PageResult[domain.Article]{}, err
	}
	p.recordPageInfo(query, page, info)

	slog.Debug("Fetched page", "provider", p.name, "page", page, "articles_on_page", len(articles))
	return feed.PageResult[domain.Article]{Items: articles}, nil
}

func (p *GenericProvider) knownLastPage(query string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastPage[query]
	return last, ok
}

// recordPageInfo remembers page as the last one when the API reports no more results.
// Any page that still has more, page 1 included, forgets what was known.
func (p *GenericProvider) recordPageInfo(query string, page int, info *domain.PageInfo) {
	if info == nil {
		return
	}
	meta := *info
	if meta.Page == 0 {
		meta.Page = page
	}
	if meta.PageSize == 0 && p.pagination.LimitParam != "" {
		meta.PageSize = p.pagination.DefaultLimit
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if meta.HasMore() {
		delete(p.lastPage, query)
		return
	}
	p.lastPage[query] = meta.Page
}

func (p *GenericProvider) buildPageURL(page int, query string) (string, error) {
	u, err := url.Parse(p.url)
	if err != nil {
		return "", fmt.Errorf("invalid url for provider %s: %w", p.name, err)
	}

	q := u.Query()
	pageParam := p.pagination.PageParam
	if pageParam == "" {
		pageParam = "page"
	}
	q.Set(pageParam, strconv.Itoa(page))
	if p.pagination.LimitParam != "" && p.pagination.DefaultLimit > 0 {
		q.Set(p.pagination.LimitParam, strconv.Itoa(p.pagination.DefaultLimit))
	}
	if query != "" && p.pagination.QueryParam != "" {
		q.Set(p.pagination.QueryParam, query)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *GenericProvider) fetchSinglePage(ctx context.Context, url string, page int) ([]domain.Article, *domain.PageInfo, error) {
	var body io.ReadCloser

	_, err := p.cb.Execute(func() (interface{}, error) {
		backoff := p.backoff
		for i := 0; i <= p.maxRetries; i++ {
			if i > 0 {
				slog.Info("Retrying request", "provider", p.name, "page", page, "attempt", i, "max_retries", p.maxRetries)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
					backoff *= 2 // Exponential backoff
				}
			}

			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if reqErr != nil {
				return nil, fmt.Errorf("failed to create request: %w", reqErr)
			}
			req.Header.Set("Accept", "application/json")
			if p.apiKey != "" {
				req.Header.Set("X-Api-Key", p.apiKey)
			}

			resp, respErr := p.client.Do(req)
			if respErr != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				slog.Warn("Request failed", "provider", p.name, "page", page, "error", respErr)
				continue // Retry on network error
			}

			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				closeBody(resp.Body)
				slog.Warn("Server error", "provider", p.name, "page", page, "status_code", resp.StatusCode)
				continue
			}

			if resp.StatusCode != http.StatusOK {
				closeBody(resp.Body)
				return nil, fmt.Errorf("%w: provider %s returned status %d", ErrClientStatus, p.name, resp.StatusCode)
			}

			body = resp.Body
			return nil, nil
		}
		return nil, fmt.Errorf("max retries exceeded")
	})

	if err != nil {
		return nil, nil, fmt.Errorf("circuit breaker execute failed: %w", err)
	}
	defer closeBody(body)

	articles, info, err := p.transformer.Transform(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to transform articles from %s: %w", p.name, err)
	}
	return articles, info, nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}
