package domain

import (
	"context"
	"slices"
	"strings"
	"time"
)

// TopicInterestsChanged is the event topic carrying InterestsChanged payloads.
const TopicInterestsChanged = "interests.changed"

// InterestsChanged announces that a user picked a new set of news interests.
// Every open feed of that user refreshes when it sees one.
type InterestsChanged struct {
	UserID    string    `json:"user_id"`
	Interests []string  `json:"interests"`
	ChangedAt time.Time `json:"changed_at"`
}

// InterestsQuery normalises interests into an OR query, e.g. "sports OR tech".
func InterestsQuery(interests []string) string {
	cleaned := make([]string, 0, len(interests))
	for _, i := range interests {
		i = strings.ToLower(strings.TrimSpace(i))
		if i != "" && !slices.Contains(cleaned, i) {
			cleaned = append(cleaned, i)
		}
	}
	return strings.Join(cleaned, " OR ")
}

// PreferencePublisher announces preference changes to interested screens.
type PreferencePublisher interface {
	PublishInterests(ctx context.Context, event InterestsChanged) error
}
