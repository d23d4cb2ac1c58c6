package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"sticker-album-backend/internal/realtime"
	"sticker-album-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // browser origin checks handled by CORS at the edge
	},
}

// WSMessage is the envelope for client-to-server websocket messages.
type WSMessage struct {
	Type          string `json:"type"`
	RecipientID   string `json:"recipient_id,omitempty"`
	Text          string `json:"text,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	Message       string `json:"message,omitempty"`
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub           *realtime.Hub
	userService   *services.UserService
	chatService   *services.ChatService
	friendService *services.FriendService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *realtime.Hub, userService *services.UserService, chatService *services.ChatService, friendService *services.FriendService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		userService:   userService,
		chatService:   chatService,
		friendService: friendService,
	}
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on websocket requests, so the token
	// rides in the query string.
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}
	userID, err := h.userService.ValidateAccessToken(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	session := realtime.NewSession(userID, conn)
	h.hub.Register(session)
	defer h.hub.Unregister(session)

	go session.WritePump()

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	ctx := r.Context()
	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(session, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, session, msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("Failed to handle message")
			h.sendError(session, err.Error())
		}
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, session *realtime.Session, msg WSMessage) error {
	switch msg.Type {
	case "chat_message":
		return h.handleChatMessage(ctx, session, msg)
	case "subscribe_chat":
		return h.handleSubscribeChat(ctx, session, msg)
	default:
		h.sendError(session, "Unknown message type")
		return nil
	}
}

// handleChatMessage persists and fans out a direct message sent over the socket.
func (h *WebSocketHandler) handleChatMessage(ctx context.Context, session *realtime.Session, msg WSMessage) error {
	if msg.RecipientID == "" {
		h.sendError(session, "recipient_id is required")
		return nil
	}
	_, err := h.chatService.Send(ctx, session.UserID, msg.RecipientID, msg.Text, msg.AttachmentURL)
	return err
}

// handleSubscribeChat joins the session to a pairwise chat group so it
// receives messages sent while the socket is open. Friendship required.
func (h *WebSocketHandler) handleSubscribeChat(ctx context.Context, session *realtime.Session, msg WSMessage) error {
	if msg.RecipientID == "" {
		h.sendError(session, "recipient_id is required")
		return nil
	}
	allowed, err := h.friendService.IsFriend(ctx, session.UserID, msg.RecipientID)
	if err != nil {
		return err
	}
	if !allowed {
		h.sendError(session, "users are not friends")
		return nil
	}
	h.hub.Join(realtime.ChatGroup(session.UserID, msg.RecipientID), session)
	return nil
}

// sendError pushes an error envelope to one session.
func (h *WebSocketHandler) sendError(session *realtime.Session, message string) {
	data, _ := json.Marshal(WSMessage{Type: "error", Message: message})
	session.Send(data)
}
