package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/NewsFlash/internal/app"
	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/feed"
	"github.com/gorilla/mux"
)

// FeedHandler exposes reading sessions to HTTP clients, which render the rows.
type FeedHandler struct {
	sessions *app.SessionManager
}

type openSessionRequest struct {
	UserID    string   `json:"user_id"`
	Interests []string `json:"interests"`
}

type interestsRequest struct {
	Interests []string `json:"interests"`
}

type visibleRequest struct {
	LastVisible int `json:"last_visible"`
}

type articleView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Publisher   string    `json:"publisher,omitempty"`
	URL         string    `json:"url"`
	Image       string    `json:"image"`
	PublishedAt time.Time `json:"published_at"`
}

type sessionView struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Interests   []string      `json:"interests"`
	Items       []articleView `json:"items"`
	CurrentPage int           `json:"current_page"`
	Loading     bool          `json:"loading"`
	HasMore     bool          `json:"has_more"`
	Rows        int           `json:"rows"`
}

type rowView struct {
	Index   int          `json:"index"`
	Item    *articleView `json:"item,omitempty"`
	Loading bool         `json:"loading,omitempty"`
}

type errorView struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func newArticleView(a domain.Article) articleView {
	return articleView{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Publisher:   a.Publisher,
		URL:         a.URL,
		Image:       a.Image(),
		PublishedAt: a.PublishedAt,
	}
}

func newSessionView(s *app.Session) sessionView {
	snap := s.Feed.Snapshot()
	items := make([]articleView, 0, len(snap.Items))
	for _, a := range snap.Items {
		items = append(items, newArticleView(a))
	}
	rows := len(snap.Items)
	if snap.HasMore {
		rows++
	}
	return sessionView{
		ID:          s.ID,
		UserID:      s.UserID,
		Interests:   s.Interests(),
		Items:       items,
		CurrentPage: snap.CurrentPage,
		Loading:     snap.Loading,
		HasMore:     snap.HasMore,
		Rows:        rows,
	}
}

func (h *FeedHandler) session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	s, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return s, true
}

func (h *FeedHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "user_id is required", Kind: "bad_request"})
		return
	}
	s := h.sessions.Open(req.UserID, req.Interests)
	writeJSON(w, http.StatusCreated, newSessionView(s))
}

func (h *FeedHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, newSessionView(s))
	}
}

func (h *FeedHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Feed.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

func (h *FeedHandler) LoadNextPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Feed.LoadNextPage(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

// Row answers a client rendering row index. The trailing loading row starts the next
// page load and answers 202.
func (h *FeedHandler) Row(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "invalid row index", Kind: "bad_request"})
		return
	}

	item, found := s.Feed.RequestItemAt(index)
	if found {
		v := newArticleView(item)
		writeJSON(w, http.StatusOK, rowView{Index: index, Item: &v})
		return
	}

	snap := s.Feed.Snapshot()
	if index < len(snap.Items) {
		v := newArticleView(snap.Items[index])
		writeJSON(w, http.StatusOK, rowView{Index: index, Item: &v})
		return
	}
	if index == len(snap.Items) && snap.HasMore {
		writeJSON(w, http.StatusAccepted, rowView{Index: index, Loading: true})
		return
	}
	writeJSON(w, http.StatusNotFound, errorView{Error: "row out of range", Kind: "not_found"})
}

func (h *FeedHandler) Visible(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req visibleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "invalid body", Kind: "bad_request"})
		return
	}
	s.Feed.NearEnd(req.LastVisible)
	w.WriteHeader(http.StatusAccepted)
}

func (h *FeedHandler) SetInterests(w http.ResponseWriter, r *http.Request) {
	var req interestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "invalid body", Kind: "bad_request"})
		return
	}
	if err := h.sessions.SetInterests(r.Context(), mux.Vars(r)["user"], req.Interests); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, feed.ErrBusy):
		status, kind = http.StatusConflict, "busy"
	case errors.Is(err, feed.ErrExhausted):
		status, kind = http.StatusConflict, "exhausted"
	case errors.Is(err, feed.ErrFetchFailed):
		status, kind = http.StatusBadGateway, "fetch_failed"
	case errors.Is(err, feed.ErrClosed):
		status, kind = http.StatusGone, "closed"
	}
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorView{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
