package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sticker-album-backend/internal/metrics"
	"sticker-album-backend/internal/models"
	"sticker-album-backend/internal/realtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChatStore is the persistence surface the chat service needs.
type ChatStore interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	ListBetween(ctx context.Context, userA, userB string, limit int) ([]*models.ChatMessage, error)
}

// FriendChecker reports whether two users may chat.
type FriendChecker interface {
	IsFriend(ctx context.Context, userA, userB string) (bool, error)
}

// ChatService persists direct messages and fans them out in realtime.
type ChatService struct {
	messages ChatStore
	users    MemberStore
	friends  FriendChecker
	notify   Broadcaster
}

// NewChatService creates a new chat service.
func NewChatService(messages ChatStore, users MemberStore, friends FriendChecker, notify Broadcaster) *ChatService {
	return &ChatService{messages: messages, users: users, friends: friends, notify: notify}
}

// History returns the most recent messages between two users, newest
// first. The limit is clamped to [1, 200] with a default of 50.
func (s *ChatService) History(ctx context.Context, userID, otherID string, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.messages.ListBetween(ctx, userID, otherID, limit)
}

// Send persists a message and broadcasts it to the pairwise chat group,
// plus a notification to the recipient's personal group. Requires text
// or an attachment, and an accepted friendship.
func (s *ChatService) Send(ctx context.Context, senderID, recipientID, text, attachmentURL string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" && attachmentURL == "" {
		return nil, ErrEmptyMessage
	}

	allowed, err := s.friends.IsFriend(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship: %w", err)
	}
	if !allowed {
		return nil, ErrNotFriends
	}

	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ID:            uuid.New().String(),
		SenderID:      senderID,
		RecipientID:   recipient.ID,
		Text:          text,
		AttachmentURL: attachmentURL,
		CreatedAt:     time.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	metrics.ChatMessagesTotal.Inc()

	if s.notify != nil {
		group := realtime.ChatGroup(senderID, recipientID)
		payload := map[string]any{"type": "chat_message", "message": msg}
		if err := s.notify.Broadcast(ctx, group, payload); err != nil {
			log.Error().Err(err).Str("group", group).Msg("Failed to broadcast chat message")
		}
	}
	notifyUser(ctx, s.notify, recipientID, Notification{
		Title:   "New message",
		Message: fmt.Sprintf("%s: %s", sender.Username, truncateRunes(text, 80)),
	})

	return msg, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
