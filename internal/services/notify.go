package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"sticker-album-backend/internal/realtime"
)

// Broadcaster publishes a message to a named broadcast group. Implemented
// by the realtime hub.
type Broadcaster interface {
	Broadcast(ctx context.Context, group string, v any) error
}

// Notification is the payload pushed to a user's personal group.
type Notification struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

// notifyUser pushes a notification to the user's personal group.
// Delivery is best effort; a disconnected user simply misses the push.
func notifyUser(ctx context.Context, b Broadcaster, userID string, n Notification) {
	if b == nil {
		return
	}
	n.Type = "notification"
	if err := b.Broadcast(ctx, realtime.UserGroup(userID), n); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to push notification")
	}
}
