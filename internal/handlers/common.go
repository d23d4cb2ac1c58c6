package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"sticker-album-backend/internal/repository"
	"sticker-album-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON writes a JSON body with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondServiceError maps domain errors onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, services.ErrUserExists):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrNotAllowed):
		respondError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrSelfRequest),
		errors.Is(err, services.ErrNotFriends),
		errors.Is(err, services.ErrPhotoRequired),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrNameRequired):
		respondError(w, err.Error(), http.StatusBadRequest)
	default:
		respondError(w, "Internal server error", http.StatusInternalServerError)
	}
}
