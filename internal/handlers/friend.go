package handlers

import (
	"encoding/json"
	"net/http"

	"sticker-album-backend/internal/middleware"
	"sticker-album-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// FriendHandler handles friend-request HTTP requests
type FriendHandler struct {
	friendService *services.FriendService
}

// NewFriendHandler creates a new friend handler
func NewFriendHandler(friendService *services.FriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

type friendRequestBody struct {
	ToUserID string `json:"to_user_id"`
}

// Request handles POST /api/v1/friends/requests
func (h *FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req friendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ToUserID == "" {
		respondError(w, "to_user_id is required", http.StatusBadRequest)
		return
	}

	fr, created, err := h.friendService.Request(r.Context(), middleware.GetUserID(r.Context()), req.ToUserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, fr)
}

// List handles GET /api/v1/friends/requests?scope=all|sent|received&status=...
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.friendService.List(
		r.Context(),
		middleware.GetUserID(r.Context()),
		r.URL.Query().Get("scope"),
		r.URL.Query().Get("status"),
	)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// Accept handles POST /api/v1/friends/requests/{requestID}/accept
func (h *FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	fr, err := h.friendService.Accept(r.Context(), chi.URLParam(r, "requestID"), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fr)
}

// Reject handles POST /api/v1/friends/requests/{requestID}/reject
func (h *FriendHandler) Reject(w http.ResponseWriter, r *http.Request) {
	fr, err := h.friendService.Reject(r.Context(), chi.URLParam(r, "requestID"), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, fr)
}

// Cancel handles DELETE /api/v1/friends/requests/{requestID}
func (h *FriendHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.friendService.Cancel(r.Context(), chi.URLParam(r, "requestID"), middleware.GetUserID(r.Context())); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /api/v1/friends/{requestID}
func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.friendService.Remove(r.Context(), chi.URLParam(r, "requestID"), middleware.GetUserID(r.Context())); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Friends handles GET /api/v1/friends
func (h *FriendHandler) Friends(w http.ResponseWriter, r *http.Request) {
	users, err := h.friendService.Friends(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// Members handles GET /api/v1/users
func (h *FriendHandler) Members(w http.ResponseWriter, r *http.Request) {
	users, err := h.friendService.Members(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}
