package services

import (
	"context"
	"strings"
	"time"

	"sticker-album-backend/internal/models"

	"github.com/google/uuid"
)

// AlbumStore is the persistence surface for albums.
type AlbumStore interface {
	Create(ctx context.Context, album *models.Album) error
	GetByID(ctx context.Context, id string) (*models.Album, error)
	List(ctx context.Context) ([]*models.Album, error)
	Update(ctx context.Context, album *models.Album) error
	Delete(ctx context.Context, id string) error
}

// StickerStore is the persistence surface for stickers.
type StickerStore interface {
	Create(ctx context.Context, sticker *models.Sticker) error
	GetByID(ctx context.Context, id string) (*models.Sticker, error)
	ListByAlbum(ctx context.Context, albumID string) ([]*models.Sticker, error)
	Update(ctx context.Context, sticker *models.Sticker) error
	Delete(ctx context.Context, id string) error
}

// AlbumService manages the sticker catalog. Mutations are admin-gated at
// the handler layer; reads are open to any authenticated user.
type AlbumService struct {
	albums   AlbumStore
	stickers StickerStore
}

// NewAlbumService creates a new album service.
func NewAlbumService(albums AlbumStore, stickers StickerStore) *AlbumService {
	return &AlbumService{albums: albums, stickers: stickers}
}

// AlbumInput is the payload for creating or updating an album.
type AlbumInput struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Theme         string   `json:"theme"`
	CoverImageURL string   `json:"cover_image_url"`
	IsPremium     bool     `json:"is_premium"`
	Price         *float64 `json:"price"`
}

// CreateAlbum creates an album.
func (s *AlbumService) CreateAlbum(ctx context.Context, in AlbumInput) (*models.Album, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	now := time.Now()
	album := &models.Album{
		ID:            uuid.New().String(),
		Title:         title,
		Description:   in.Description,
		Theme:         in.Theme,
		CoverImageURL: in.CoverImageURL,
		IsPremium:     in.IsPremium,
		Price:         in.Price,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.albums.Create(ctx, album); err != nil {
		return nil, err
	}
	return album, nil
}

// GetAlbum returns an album with its stickers attached, ordered by position.
func (s *AlbumService) GetAlbum(ctx context.Context, id string) (*models.Album, error) {
	album, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stickers, err := s.stickers.ListByAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	album.Stickers = stickers
	return album, nil
}

// ListAlbums returns all albums without their stickers.
func (s *AlbumService) ListAlbums(ctx context.Context) ([]*models.Album, error) {
	return s.albums.List(ctx)
}

// UpdateAlbum applies a full update to an album.
func (s *AlbumService) UpdateAlbum(ctx context.Context, id string, in AlbumInput) (*models.Album, error) {
	album, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	album.Title = title
	album.Description = in.Description
	album.Theme = in.Theme
	album.CoverImageURL = in.CoverImageURL
	album.IsPremium = in.IsPremium
	album.Price = in.Price
	album.UpdatedAt = time.Now()
	if err := s.albums.Update(ctx, album); err != nil {
		return nil, err
	}
	return album, nil
}

// DeleteAlbum removes an album. Stickers and unlock records cascade at
// the database level.
func (s *AlbumService) DeleteAlbum(ctx context.Context, id string) error {
	if _, err := s.albums.GetByID(ctx, id); err != nil {
		return err
	}
	return s.albums.Delete(ctx, id)
}

// StickerInput is the payload for creating or updating a sticker.
type StickerInput struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	LocationLat       *float64 `json:"location_lat"`
	LocationLng       *float64 `json:"location_lng"`
	ImageReferenceURL string   `json:"image_reference_url"`
	RewardPoints      int      `json:"reward_points"`
	Position          int      `json:"order"`
}

// CreateSticker adds a sticker to an album.
func (s *AlbumService) CreateSticker(ctx context.Context, albumID string, in StickerInput) (*models.Sticker, error) {
	if _, err := s.albums.GetByID(ctx, albumID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := time.Now()
	sticker := &models.Sticker{
		ID:                uuid.New().String(),
		AlbumID:           albumID,
		Name:              name,
		Description:       in.Description,
		LocationLat:       in.LocationLat,
		LocationLng:       in.LocationLng,
		ImageReferenceURL: in.ImageReferenceURL,
		RewardPoints:      in.RewardPoints,
		Position:          in.Position,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.stickers.Create(ctx, sticker); err != nil {
		return nil, err
	}
	return sticker, nil
}

// GetSticker returns one sticker.
func (s *AlbumService) GetSticker(ctx context.Context, id string) (*models.Sticker, error) {
	return s.stickers.GetByID(ctx, id)
}

// ListStickers returns an album's stickers ordered by position.
func (s *AlbumService) ListStickers(ctx context.Context, albumID string) ([]*models.Sticker, error) {
	if _, err := s.albums.GetByID(ctx, albumID); err != nil {
		return nil, err
	}
	return s.stickers.ListByAlbum(ctx, albumID)
}

// UpdateSticker applies a full update to a sticker.
func (s *AlbumService) UpdateSticker(ctx context.Context, id string, in StickerInput) (*models.Sticker, error) {
	sticker, err := s.stickers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	sticker.Name = name
	sticker.Description = in.Description
	sticker.LocationLat = in.LocationLat
	sticker.LocationLng = in.LocationLng
	sticker.ImageReferenceURL = in.ImageReferenceURL
	sticker.RewardPoints = in.RewardPoints
	sticker.Position = in.Position
	sticker.UpdatedAt = time.Now()
	if err := s.stickers.Update(ctx, sticker); err != nil {
		return nil, err
	}
	return sticker, nil
}

// DeleteSticker removes a sticker.
func (s *AlbumService) DeleteSticker(ctx context.Context, id string) error {
	if _, err := s.stickers.GetByID(ctx, id); err != nil {
		return err
	}
	return s.stickers.Delete(ctx, id)
}
