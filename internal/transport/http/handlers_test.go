package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NewsFlash/internal/app"
	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/events"
	"github.com/NewsFlash/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedFetcher serves pages articles per query, one per page, then empty pages.
type pagedFetcher struct {
	pages int
	fail  atomic.Bool
}

func (p *pagedFetcher) factory(interests []string) domain.ArticleFetcher {
	query := domain.InterestsQuery(interests)
	return feed.FetcherFunc[domain.Article](func(_ context.Context, req feed.PageRequest) (feed.PageResult[domain.Article], error) {
		if p.fail.Load() {
			return feed.PageResult[domain.Article]{}, errors.New("upstream unavailable")
		}
		if req.Page > p.pages {
			return feed.PageResult[domain.Article]{}, nil
		}
		return feed.PageResult[domain.Article]{Items: []domain.Article{{
			ID:    fmt.Sprintf("%s-%d", query, req.Page),
			Title: fmt.Sprintf("Story %d", req.Page),
		}}}, nil
	})
}

func newTestServer(t *testing.T, pages int) (*httptest.Server, *app.SessionManager, *pagedFetcher) {
	t.Helper()
	fetcher := &pagedFetcher{pages: pages}
	bus := events.NewBus()
	sessions := app.NewSessionManager(fetcher.factory, bus, bus)
	srv := httptest.NewServer(NewRouter(sessions))
	t.Cleanup(func() {
		srv.Close()
		sessions.CloseAll()
	})
	return srv, sessions, fetcher
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func openSession(t *testing.T, srv *httptest.Server, sessions *app.SessionManager) *app.Session {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/sessions", openSessionRequest{UserID: "user-1", Interests: []string{"sports"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decode[sessionView](t, resp)

	s, err := sessions.Get(view.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap := s.Feed.Snapshot()
		return len(snap.Items) == 1 && !snap.Loading
	}, 2*time.Second, 5*time.Millisecond)
	return s
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, 1)

	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpenSession_RequiresUser(t *testing.T) {
	srv, _, _ := newTestServer(t, 1)

	resp := do(t, http.MethodPost, srv.URL+"/sessions", openSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	srv, sessions, _ := newTestServer(t, 2)
	s := openSession(t, srv, sessions)
	base := srv.URL + "/sessions/" + s.ID

	resp := do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[sessionView](t, resp)
	assert.Equal(t, "user-1", view.UserID)
	assert.Equal(t, 2, view.Rows)
	require.Len(t, view.Items, 1)
	assert.Equal(t, domain.PlaceholderImage, view.Items[0].Image)

	resp = do(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[sessionView](t, resp)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 3, view.CurrentPage)

	// The empty third page marks the feed exhausted.
	resp = do(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[sessionView](t, resp)
	assert.False(t, view.HasMore)
	assert.Equal(t, 2, view.Rows)
	assert.Equal(t, 4, view.CurrentPage)

	resp = do(t, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "exhausted", decode[errorView](t, resp).Kind)

	resp = do(t, http.MethodPost, base+"/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[sessionView](t, resp)
	assert.Len(t, view.Items, 1)
	assert.True(t, view.HasMore)

	resp = do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRow(t *testing.T) {
	srv, sessions, _ := newTestServer(t, 3)
	s := openSession(t, srv, sessions)
	base := srv.URL + "/sessions/" + s.ID + "/rows/"

	resp := do(t, http.MethodGet, base+"0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	row := decode[rowView](t, resp)
	require.NotNil(t, row.Item)
	assert.Equal(t, "sports-1", row.Item.ID)

	// The loading row answers 202 unless the page it started has already landed.
	resp = do(t, http.MethodGet, base+"1", nil)
	require.Contains(t, []int{http.StatusAccepted, http.StatusOK}, resp.StatusCode)
	assert.Equal(t, 1, decode[rowView](t, resp).Index)

	assert.Eventually(t, func() bool {
		return len(s.Feed.Snapshot().Items) == 2
	}, 2*time.Second, 5*time.Millisecond)

	resp = do(t, http.MethodGet, base+"7", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVisible_LoadsNextPage(t *testing.T) {
	srv, sessions, _ := newTestServer(t, 3)
	s := openSession(t, srv, sessions)

	resp := do(t, http.MethodPost, srv.URL+"/sessions/"+s.ID+"/visible", visibleRequest{LastVisible: 0})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Eventually(t, func() bool {
		return len(s.Feed.Snapshot().Items) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRefresh_FetchFailure(t *testing.T) {
	srv, sessions, fetcher := newTestServer(t, 3)
	s := openSession(t, srv, sessions)
	fetcher.fail.Store(true)

	resp := do(t, http.MethodPost, srv.URL+"/sessions/"+s.ID+"/refresh", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "fetch_failed", decode[errorView](t, resp).Kind)
	assert.Len(t, s.Feed.Snapshot().Items, 1)
}

func TestSetInterests_RefreshesOpenSession(t *testing.T) {
	srv, sessions, _ := newTestServer(t, 3)
	s := openSession(t, srv, sessions)

	resp := do(t, http.MethodPut, srv.URL+"/users/user-1/interests", interestsRequest{Interests: []string{"Tech"}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Eventually(t, func() bool {
		items := s.Feed.Snapshot().Items
		return len(items) == 1 && items[0].ID == "tech-1"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{feed.ErrBusy, http.StatusConflict},
		{feed.ErrExhausted, http.StatusConflict},
		{&feed.FetchError{Op: "next", Page: 2, Err: errors.New("boom")}, http.StatusBadGateway},
		{feed.ErrClosed, http.StatusGone},
		{fmt.Errorf("%w: x", app.ErrSessionNotFound), http.StatusNotFound},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
