package models

import (
	"encoding/json"
	"time"
)

// User represents an account with its gamification points balance.
// Points is a cached aggregate; the resync job recomputes it from
// approved unlocks to correct drift.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"bio"`
	AvatarURL    string    `json:"avatar_url"`
	Points       int       `json:"points"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Album owns an ordered collection of stickers.
type Album struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Theme         string     `json:"theme"`
	CoverImageURL string     `json:"cover_image_url"`
	IsPremium     bool       `json:"is_premium"`
	Price         *float64   `json:"price,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Stickers      []*Sticker `json:"stickers,omitempty"`
}

// Sticker belongs to exactly one album. Unique per (album, name).
type Sticker struct {
	ID                string    `json:"id"`
	AlbumID           string    `json:"album_id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	LocationLat       *float64  `json:"location_lat,omitempty"`
	LocationLng       *float64  `json:"location_lng,omitempty"`
	ImageReferenceURL string    `json:"image_reference_url"`
	RewardPoints      int       `json:"reward_points"`
	Position          int       `json:"order"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Unlock submission states.
const (
	UnlockStatusPending    = "pending"
	UnlockStatusValidating = "validating"
	UnlockStatusApproved   = "approved"
	UnlockStatusRejected   = "rejected"
)

// UserSticker is the per-user-per-sticker unlock record, unique per pair.
// Created on the first unlock attempt and mutated by the validation worker
// and the photo-match endpoint; never hard-deleted by normal flow.
type UserSticker struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	StickerID          string          `json:"sticker_id"`
	PhotoURL           string          `json:"photo_url"`
	Comment            string          `json:"comment"`
	Status             string          `json:"status"`
	Validated          bool            `json:"validated"`
	ValidatedAt        *time.Time      `json:"validated_at,omitempty"`
	ValidationNotes    json.RawMessage `json:"validation_notes,omitempty"`
	ValidationScore    *float64        `json:"validation_score,omitempty"`
	UnlockedAt         *time.Time      `json:"unlocked_at,omitempty"`
	DetectedMake       string          `json:"detected_make"`
	DetectedModel      string          `json:"detected_model"`
	DetectedGeneration string          `json:"detected_generation"`
	DetectedYearRange  string          `json:"detected_year_range"`
	FunFact            string          `json:"fun_fact"`
	UserMessage        string          `json:"user_message"`
	LocationLabel      string          `json:"location_label"`
	LocationLat        *float64        `json:"location_lat,omitempty"`
	LocationLng        *float64        `json:"location_lng,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Friend request states.
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusRejected = "rejected"
)

// FriendRequest is a directed edge between two users. At most one row
// exists per unordered pair; an accepted row means mutual friendship.
type FriendRequest struct {
	ID          string     `json:"id"`
	FromUserID  string     `json:"from_user_id"`
	ToUserID    string     `json:"to_user_id"`
	Status      string     `json:"status"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ChatMessage carries text and/or a file attachment between two users.
type ChatMessage struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"sender_id"`
	RecipientID   string    `json:"recipient_id"`
	Text          string    `json:"text"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
