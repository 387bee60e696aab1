package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/domain/mocks"
	"github.com/NewsFlash/internal/feed"
	"github.com/NewsFlash/pkg/config"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testSource(url string) config.SourceConfig {
	return config.SourceConfig{
		Name:   "test-provider",
		URL:    url,
		APIKey: "key-123",
		Pagination: config.PaginationConfig{
			PageParam:    "page",
			LimitParam:   "pageSize",
			QueryParam:   "q",
			DefaultLimit: 2,
		},
	}
}

func newTestProvider(url string, tr domain.Transformer) *GenericProvider {
	p := NewGenericProvider(testSource(url), tr)
	p.backoff = time.Millisecond
	return p
}

func TestGenericProvider_FetchPage_EncodesRequest(t *testing.T) {
	var gotPage, gotSize, gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPage = r.URL.Query().Get("page")
		gotSize = r.URL.Query().Get("pageSize")
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr := new(mocks.MockTransformer)
	tr.On("Transform", mock.Anything).Return([]domain.Article{{ID: "1"}, {ID: "2"}}, nil, nil)

	p := newTestProvider(server.URL+"/v2/everything?language=en", tr)
	res, err := p.WithQuery("sports OR tech").FetchPage(context.Background(), feed.PageRequest{Page: 3})

	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, "3", gotPage)
	assert.Equal(t, "2", gotSize)
	assert.Equal(t, "sports OR tech", gotQuery)
	assert.Equal(t, "key-123", gotKey)
	tr.AssertExpectations(t)
}

func TestGenericProvider_FetchPage_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr := new(mocks.MockTransformer)
	tr.On("Transform", mock.Anything).Return([]domain.Article{{ID: "x"}}, nil, nil).Once()

	p := newTestProvider(server.URL, tr)
	res, err := p.FetchPage(context.Background(), feed.PageRequest{Page: 1})

	require.NoError(t, err)
	assert.Equal(t, []domain.Article{{ID: "x"}}, res.Items)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGenericProvider_FetchPage_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, new(mocks.MockTransformer))
	_, err := p.FetchPage(context.Background(), feed.PageRequest{Page: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClientStatus)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGenericProvider_FetchPage_TransformError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	tr := new(mocks.MockTransformer)
	tr.On("Transform", mock.Anything).Return(nil, nil, errors.New("bad payload"))

	p := newTestProvider(server.URL, tr)
	_, err := p.FetchPage(context.Background(), feed.PageRequest{Page: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to transform")
}

func TestGenericProvider_CircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := newTestProvider(server.URL, new(mocks.MockTransformer))
	p.maxRetries = 0

	for i := 0; i < 3; i++ {
		_, err := p.FetchPage(context.Background(), feed.PageRequest{Page: 1})
		require.Error(t, err)
	}

	_, err := p.FetchPage(context.Background(), feed.PageRequest{Page: 1})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), hits.Load(), "open breaker must not reach the server")
}

func TestGenericProvider_FetchPage_InvalidPage(t *testing.T) {
	p := newTestProvider("http://localhost", new(mocks.MockTransformer))
	_, err := p.FetchPage(context.Background(), feed.PageRequest{Page: 0})
	assert.Error(t, err)
}

func TestGenericProvider_FetchPage_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	p := newTestProvider(server.URL, new(mocks.MockTransformer))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.FetchPage(ctx, feed.PageRequest{Page: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenericProvider_FetchPage_StopsAtReportedTotal(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr := new(mocks.MockTransformer)
	tr.On("Transform", mock.Anything).Return([]domain.Article{{ID: "1"}, {ID: "2"}}, &domain.PageInfo{TotalResults: 3}, nil).Once()
	tr.On("Transform", mock.Anything).Return([]domain.Article{{ID: "3"}}, &domain.PageInfo{TotalResults: 3}, nil).Once()

	p := newTestProvider(server.URL, tr)
	sports := p.WithQuery("sports")

	res, err := sports.FetchPage(context.Background(), feed.PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)

	res, err = sports.FetchPage(context.Background(), feed.PageRequest{Page: 2})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	// Two results per page and three in total: page 2 was the last one.
	res, err = sports.FetchPage(context.Background(), feed.PageRequest{Page: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Equal(t, int32(2), hits.Load())

	// Other queries keep their own totals.
	tr.On("Transform", mock.Anything).Return([]domain.Article{{ID: "t1"}}, nil, nil).Once()
	res, err = p.WithQuery("tech").FetchPage(context.Background(), feed.PageRequest{Page: 3})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, int32(3), hits.Load())
	tr.AssertExpectations(t)
}

func TestGenericProvider_FetchPage_FirstPageForgetsTotal(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr := new(mocks.MockTransformer)
	tr.On("Transform", mock.Anything).Return([]domain.Article{{ID: "1"}}, &domain.PageInfo{TotalResults: 1}, nil).Once()
	tr.On("Transform", mock.Anything).Return([]domain.Article{{ID: "1"}, {ID: "2"}}, &domain.PageInfo{TotalResults: 4}, nil).Once()
	tr.On("Transform", mock.Anything).Return([]domain.Article{{ID: "3"}}, &domain.PageInfo{TotalResults: 4}, nil).Once()

	p := newTestProvider(server.URL, tr)

	_, err := p.FetchPage(context.Background(), feed.PageRequest{Page: 1})
	require.NoError(t, err)

	// New stories arrived: the refreshed first page reports a larger total.
	_, err = p.FetchPage(context.Background(), feed.PageRequest{Page: 1})
	require.NoError(t, err)

	res, err := p.FetchPage(context.Background(), feed.PageRequest{Page: 2})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, int32(3), hits.Load())
	tr.AssertExpectations(t)
}
