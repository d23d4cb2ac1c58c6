package handlers

import (
	"encoding/json"
	"net/http"

	"sticker-album-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// AlbumHandler handles album and sticker catalog HTTP requests
type AlbumHandler struct {
	albumService *services.AlbumService
}

// NewAlbumHandler creates a new album handler
func NewAlbumHandler(albumService *services.AlbumService) *AlbumHandler {
	return &AlbumHandler{albumService: albumService}
}

// CreateAlbum handles POST /api/v1/albums
func (h *AlbumHandler) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	var in services.AlbumInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	album, err := h.albumService.CreateAlbum(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Info().Str("album_id", album.ID).Str("title", album.Title).Msg("Album created")
	respondJSON(w, http.StatusCreated, album)
}

// ListAlbums handles GET /api/v1/albums
func (h *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.albumService.ListAlbums(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, albums)
}

// GetAlbum handles GET /api/v1/albums/{albumID}
func (h *AlbumHandler) GetAlbum(w http.ResponseWriter, r *http.Request) {
	album, err := h.albumService.GetAlbum(r.Context(), chi.URLParam(r, "albumID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, album)
}

// UpdateAlbum handles PUT /api/v1/albums/{albumID}
func (h *AlbumHandler) UpdateAlbum(w http.ResponseWriter, r *http.Request) {
	var in services.AlbumInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	album, err := h.albumService.UpdateAlbum(r.Context(), chi.URLParam(r, "albumID"), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, album)
}

// DeleteAlbum handles DELETE /api/v1/albums/{albumID}
func (h *AlbumHandler) DeleteAlbum(w http.ResponseWriter, r *http.Request) {
	if err := h.albumService.DeleteAlbum(r.Context(), chi.URLParam(r, "albumID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSticker handles POST /api/v1/albums/{albumID}/stickers
func (h *AlbumHandler) CreateSticker(w http.ResponseWriter, r *http.Request) {
	var in services.StickerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sticker, err := h.albumService.CreateSticker(r.Context(), chi.URLParam(r, "albumID"), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sticker)
}

// ListStickers handles GET /api/v1/albums/{albumID}/stickers
func (h *AlbumHandler) ListStickers(w http.ResponseWriter, r *http.Request) {
	stickers, err := h.albumService.ListStickers(r.Context(), chi.URLParam(r, "albumID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stickers)
}

// GetSticker handles GET /api/v1/stickers/{stickerID}
func (h *AlbumHandler) GetSticker(w http.ResponseWriter, r *http.Request) {
	sticker, err := h.albumService.GetSticker(r.Context(), chi.URLParam(r, "stickerID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sticker)
}

// UpdateSticker handles PUT /api/v1/stickers/{stickerID}
func (h *AlbumHandler) UpdateSticker(w http.ResponseWriter, r *http.Request) {
	var in services.StickerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sticker, err := h.albumService.UpdateSticker(r.Context(), chi.URLParam(r, "stickerID"), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sticker)
}

// DeleteSticker handles DELETE /api/v1/stickers/{stickerID}
func (h *AlbumHandler) DeleteSticker(w http.ResponseWriter, r *http.Request) {
	if err := h.albumService.DeleteSticker(r.Context(), chi.URLParam(r, "stickerID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
