package events

import (
	"time"

	"github.com/google/uuid"
)

// TopicUserLoggedIn is the Watermill topic published after a successful login.
const TopicUserLoggedIn = "user.logged_in"

// UserLoggedInEvent is published once the password check has passed.
// Consumers subscribe via EventBus.Subscribe(ctx, events.TopicUserLoggedIn).
type UserLoggedInEvent struct {
	EventID    uuid.UUID `json:"event_id"` // Unique publish-time identifier for deduplication
	Version    int       `json:"version"`  // Schema version; increment on breaking changes
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}
