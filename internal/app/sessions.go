package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/events"
	"github.com/NewsFlash/internal/feed"
	"github.com/NewsFlash/internal/infra/metrics"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// FetcherFactory builds the fetch capability for a set of interests.
type FetcherFactory func(interests []string) domain.ArticleFetcher

// Session is one open news screen: a feed and the user it belongs to.
type Session struct {
	ID       string
	UserID   string
	Feed     *domain.ArticleFeed
	OpenedAt time.Time

	mu        sync.RWMutex
	interests []string

	cancel context.CancelFunc
	done   chan struct{}
}

// Interests returns the interests the feed currently fetches for.
func (s *Session) Interests() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.interests)
}

func (s *Session) setInterests(interests []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interests = slices.Clone(interests)
}

// SessionManager owns the sessions of a process. Sessions share nothing but the event
// bus; every session has its own feed.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	newFetcher FetcherFactory
	bus        *events.Bus
	publisher  domain.PreferencePublisher
	feedOpts   []feed.Option
}

func NewSessionManager(
	newFetcher FetcherFactory,
	bus *events.Bus,
	publisher domain.PreferencePublisher,
	feedOpts ...feed.Option,
) *SessionManager {
	return &SessionManager{
		sessions:   make(map[string]*Session),
		newFetcher: newFetcher,
		bus:        bus,
		publisher:  publisher,
		feedOpts:   feedOpts,
	}
}

// Open creates a session and starts loading its first page in the background.
func (m *SessionManager) Open(userID string, interests []string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		OpenedAt:  time.Now(),
		interests: slices.Clone(interests),
		done:      make(chan struct{}),
	}

	fetcher := feed.FetcherFunc[domain.Article](func(ctx context.Context, req feed.PageRequest) (feed.PageResult[domain.Article], error) {
		return m.newFetcher(s.Interests()).FetchPage(ctx, req)
	})
	opts := append(slices.Clone(m.feedOpts), feed.WithName("session:"+s.ID))
	s.Feed = feed.New[domain.Article](fetcher, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	changes, unsubscribe := m.bus.Subscribe(domain.TopicInterestsChanged)
	feedEvents, stopFeedEvents := s.Feed.Subscribe()
	go func() {
		defer close(s.done)
		defer unsubscribe()
		defer stopFeedEvents()
		m.watch(ctx, s, changes, feedEvents)
	}()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	metrics.OpenSessions.Inc()

	// Same as a list showing its loading row for the first time.
	s.Feed.RequestItemAt(0)

	slog.Info("Session opened", "session_id", s.ID, "user_id", userID, "interests", interests)
	return s
}

// watch refreshes the session's feed when its user's interests change. A change that
// arrives while a fetch is in flight is applied once that fetch completes.
func (m *SessionManager) watch(ctx context.Context, s *Session, changes <-chan events.Event, feedEvents <-chan feed.Event[domain.Article]) {
	pending := false
	refresh := func() {
		err := s.Feed.Refresh(ctx)
		switch {
		case errors.Is(err, feed.ErrBusy):
			pending = true
		case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, feed.ErrClosed):
			// The failure already reached subscribers as EventFetchFailed.
			slog.Debug("Refresh after interests change failed", "session_id", s.ID, "error", err)
			pending = false
		default:
			pending = false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			change, isChange := ev.Payload.(domain.InterestsChanged)
			if !isChange || change.UserID != s.UserID {
				continue
			}
			slog.Info("Interests changed, refreshing feed", "session_id", s.ID, "user_id", s.UserID, "interests", change.Interests)
			s.setInterests(change.Interests)
			refresh()
		case ev, ok := <-feedEvents:
			if !ok {
				return
			}
			metrics.FeedEvents.WithLabelValues(ev.Kind.String()).Inc()
			if pending && !ev.Snapshot.Loading {
				refresh()
			}
		}
	}
}

// Get returns the open session with the given id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close discards a session. Its feed is closed and any fetch in flight is dropped.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	m.shutdown(s)
	slog.Info("Session closed", "session_id", id, "open_for", time.Since(s.OpenedAt))
	return nil
}

// CloseAll discards every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.shutdown(s)
	}
	slog.Info("All sessions closed", "count", len(sessions))
}

func (m *SessionManager) shutdown(s *Session) {
	s.cancel()
	s.Feed.Close()
	<-s.done
	metrics.OpenSessions.Dec()
}

// SetInterests announces a user's new interests. Every open session of that user,
// on any instance sharing the publisher, refreshes its feed.
func (m *SessionManager) SetInterests(ctx context.Context, userID string, interests []string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	event := domain.InterestsChanged{
		UserID:    userID,
		Interests: slices.Clone(interests),
		ChangedAt: time.Now().UTC(),
	}
	if err := m.publisher.PublishInterests(ctx, event); err != nil {
		return fmt.Errorf("failed to publish interests change: %w", err)
	}
	return nil
}

// ForwardToBus hands preference events received from another transport to the local bus.
func ForwardToBus(bus *events.Bus) func(ctx context.Context, event domain.InterestsChanged) error {
	return func(ctx context.Context, event domain.InterestsChanged) error {
		bus.Publish(ctx, domain.TopicInterestsChanged, event)
		return nil
	}
}
