package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"sticker-album-backend/internal/middleware"
	"sticker-album-backend/internal/services"
	"sticker-album-backend/internal/vision"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UnlockHandler handles sticker unlock and photo-match HTTP requests
type UnlockHandler struct {
	unlockService *services.UnlockService
}

// NewUnlockHandler creates a new unlock handler
func NewUnlockHandler(unlockService *services.UnlockService) *UnlockHandler {
	return &UnlockHandler{unlockService: unlockService}
}

type unlockRequest struct {
	services.UnlockRequest
	PhotoBase64 string `json:"photo_base64"`
}

// Submit handles POST /api/v1/stickers/{stickerID}/unlock
func (h *UnlockHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PhotoBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.PhotoBase64)
		if err != nil {
			respondError(w, "photo_base64 is not valid base64", http.StatusBadRequest)
			return
		}
		req.UnlockRequest.PhotoData = data
	}

	userID := middleware.GetUserID(r.Context())
	us, created, err := h.unlockService.Submit(r.Context(), userID, chi.URLParam(r, "stickerID"), req.UnlockRequest)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// 201 on first submission, 202 when validation was re-queued for an
	// existing record, 200 when the sticker is already earned.
	status := http.StatusAccepted
	if created {
		status = http.StatusCreated
	} else if us.Validated {
		status = http.StatusOK
	}
	log.Info().
		Str("user_id", userID).
		Str("user_sticker_id", us.ID).
		Bool("created", created).
		Msg("Unlock submitted")
	respondJSON(w, status, us)
}

type matchRequest struct {
	PhotoURL    string `json:"photo_url"`
	PhotoBase64 string `json:"photo_base64"`
}

// Match handles POST /api/v1/albums/{albumID}/match
func (h *UnlockHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	img := vision.Image{URL: req.PhotoURL}
	if req.PhotoBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.PhotoBase64)
		if err != nil {
			respondError(w, "photo_base64 is not valid base64", http.StatusBadRequest)
			return
		}
		img = vision.Image{Data: data}
	}

	userID := middleware.GetUserID(r.Context())
	result, err := h.unlockService.MatchAlbumPhoto(r.Context(), userID, chi.URLParam(r, "albumID"), img, req.PhotoURL)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type messageRequest struct {
	Message string `json:"message"`
}

// SetMessage handles POST /api/v1/stickers/{stickerID}/message
func (h *UnlockHandler) SetMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	us, err := h.unlockService.SetUserMessage(r.Context(), userID, chi.URLParam(r, "stickerID"), req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, us)
}

// History handles GET /api/v1/users/me/stickers
func (h *UnlockHandler) History(w http.ResponseWriter, r *http.Request) {
	unlocks, err := h.unlockService.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, unlocks)
}

// Progress handles GET /api/v1/albums/{albumID}/progress
func (h *UnlockHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	progress, err := h.unlockService.AlbumProgress(r.Context(), userID, chi.URLParam(r, "albumID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}
