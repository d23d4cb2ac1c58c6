// Package realtime implements the broadcast-group fan-out used by chat
// and notifications. Sessions join named groups; publishing to a group
// delivers the message to every member session at most once.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"sticker-album-backend/internal/metrics"
)

// BroadcastGroup is the group every connected session joins.
const BroadcastGroup = "broadcast"

// UserGroup returns the personal notification group for a user.
func UserGroup(userID string) string {
	return "user:" + userID
}

// ChatGroup returns the pairwise chat group for two users. Participant
// ids are ordered canonically so both sides resolve to the same name.
func ChatGroup(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("chat:%s:%s", userA, userB)
}

// Layer is a pub/sub backend bridging broadcast groups across instances.
type Layer interface {
	Publish(ctx context.Context, group string, data []byte) error
}

// Session is one websocket connection bound to a set of groups. Outgoing
// messages go through a buffered channel; when the buffer is full the
// message is dropped, keeping delivery at-most-once per session.
type Session struct {
	UserID string

	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewSession wraps an upgraded websocket connection.
func NewSession(userID string, conn *websocket.Conn) *Session {
	return &Session{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, 32),
	}
}

// WritePump drains the send channel onto the connection. It returns when
// the session is closed or a write fails.
func (s *Session) WritePump() {
	for data := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("user_id", s.UserID).Msg("WebSocket write failed")
			return
		}
	}
}

// Send queues a message for delivery, dropping it if the buffer is full.
func (s *Session) Send(data []byte) {
	select {
	case s.send <- data:
	default:
		log.Warn().Str("user_id", s.UserID).Msg("Session send buffer full, dropping message")
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.send)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// Hub tracks sessions and their group memberships.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Session]struct{}
	layer  Layer
}

// NewHub creates an empty hub with in-process delivery.
func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Session]struct{})}
}

// SetLayer installs a pub/sub layer. All broadcasts are then published to
// the layer, which is expected to feed them back through Deliver.
func (h *Hub) SetLayer(layer Layer) {
	h.layer = layer
}

// Register tracks a new session and joins it to its personal groups.
func (h *Hub) Register(s *Session) {
	h.Join(UserGroup(s.UserID), s)
	h.Join(BroadcastGroup, s)
	metrics.WSConnections.Inc()
	log.Info().Str("user_id", s.UserID).Msg("WebSocket session registered")
}

// Unregister removes the session from every group and closes it.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	removed := false
	for name, members := range h.groups {
		if _, ok := members[s]; ok {
			delete(members, s)
			removed = true
			if len(members) == 0 {
				delete(h.groups, name)
			}
		}
	}
	h.mu.Unlock()

	s.close()
	if removed {
		metrics.WSConnections.Dec()
		log.Info().Str("user_id", s.UserID).Msg("WebSocket session unregistered")
	}
}

// Join adds the session to a named group.
func (h *Hub) Join(group string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Session]struct{})
		h.groups[group] = members
	}
	members[s] = struct{}{}
}

// Leave removes the session from a named group.
func (h *Hub) Leave(group string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Broadcast publishes a message to every session in a group. With a
// layer installed the message round-trips through the pub/sub backend so
// other instances deliver it too.
func (h *Hub) Broadcast(ctx context.Context, group string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}
	if h.layer != nil {
		return h.layer.Publish(ctx, group, data)
	}
	h.Deliver(group, data)
	return nil
}

// Deliver fans a raw message out to the local members of a group.
func (h *Hub) Deliver(group string, data []byte) {
	h.mu.RLock()
	members := make([]*Session, 0, len(h.groups[group]))
	for s := range h.groups[group] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	for _, s := range members {
		s.Send(data)
	}
}

// GroupSize reports the number of sessions in a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
