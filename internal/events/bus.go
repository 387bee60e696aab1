// Package events is an in-process publish/subscribe bus. One bus is shared by the
// sessions of a process so that a change made on one screen reaches every other screen
// that cares about it.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/infra/metrics"
)

const defaultBuffer = 8

// Event is a message published on a topic.
type Event struct {
	Topic   string
	Payload any
}

// Bus fans published events out to the subscribers of their topic. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	buffer int
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs:   make(map[string]map[int]chan Event),
		buffer: defaultBuffer,
	}
}

// Subscribe returns a channel receiving events of topic and a func that cancels the
// subscription and closes the channel.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[topic][id]; ok {
				delete(b.subs[topic], id)
				close(c)
			}
		})
	}
}

// Publish delivers payload to the current subscribers of topic and returns how many
// received it.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) int {
	if ctx.Err() != nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	ev := Event{Topic: topic, Payload: payload}
	for id, ch := range b.subs[topic] {
		select {
		case ch <- ev:
			delivered++
		default:
			slog.Warn("Dropping event for slow subscriber", "topic", topic, "subscriber", id)
		}
	}
	return delivered
}

// PublishInterests announces an interests change on TopicInterestsChanged.
func (b *Bus) PublishInterests(ctx context.Context, event domain.InterestsChanged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := b.Publish(ctx, domain.TopicInterestsChanged, event)
	metrics.PreferenceEvents.WithLabelValues("local", "published").Inc()
	slog.Debug("Published interests change", "user_id", event.UserID, "subscribers", n)
	return nil
}

// Close closes every subscription. Later subscriptions receive a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, topic)
	}
}
