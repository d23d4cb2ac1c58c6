package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"sticker-album-backend/internal/middleware"
	"sticker-album-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UploadHandler issues pre-signed photo upload URLs
type UploadHandler struct {
	photos *storage.PhotoStorage
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(photos *storage.PhotoStorage) *UploadHandler {
	return &UploadHandler{photos: photos}
}

type presignRequest struct {
	ContentType string `json:"content_type"`
}

// Presign handles POST /api/v1/uploads/presign
func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		respondError(w, "content_type must be an image type", http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserID(r.Context())
	key := fmt.Sprintf("%s/%s%s", userID, uuid.New().String(), storage.ExtensionForContentType(req.ContentType))

	ticket, err := h.photos.PresignUpload(r.Context(), key, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to presign upload")
		respondError(w, "Failed to presign upload", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}
