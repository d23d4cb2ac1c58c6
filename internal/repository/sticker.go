package repository

import (
	"context"
	"fmt"

	"sticker-album-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StickerRepository handles database operations for stickers
type StickerRepository struct {
	db *pgxpool.Pool
}

// NewStickerRepository creates a new sticker repository
func NewStickerRepository(db *pgxpool.Pool) *StickerRepository {
	return &StickerRepository{db: db}
}

const stickerColumns = `id, album_id, name, description, location_lat, location_lng,
	image_reference_url, reward_points, position, created_at, updated_at`

// Create creates a new sticker
func (r *StickerRepository) Create(ctx context.Context, sticker *models.Sticker) error {
	query := `
		INSERT INTO stickers (id, album_id, name, description, location_lat, location_lng,
			image_reference_url, reward_points, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		sticker.ID, sticker.AlbumID, sticker.Name, sticker.Description,
		sticker.LocationLat, sticker.LocationLng, sticker.ImageReferenceURL,
		sticker.RewardPoints, sticker.Position, sticker.CreatedAt, sticker.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sticker: %w", err)
	}
	return nil
}

// GetByID retrieves a sticker by ID
func (r *StickerRepository) GetByID(ctx context.Context, id string) (*models.Sticker, error) {
	query := `SELECT ` + stickerColumns + ` FROM stickers WHERE id = $1`
	var s models.Sticker
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.AlbumID, &s.Name, &s.Description, &s.LocationLat, &s.LocationLng,
		&s.ImageReferenceURL, &s.RewardPoints, &s.Position, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("sticker %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get sticker: %w", err)
	}
	return &s, nil
}

// ListByAlbum retrieves the stickers of an album in display order
func (r *StickerRepository) ListByAlbum(ctx context.Context, albumID string) ([]*models.Sticker, error) {
	query := `SELECT ` + stickerColumns + ` FROM stickers WHERE album_id = $1 ORDER BY position ASC, name ASC`
	return r.queryStickers(ctx, query, albumID)
}

// List retrieves all stickers in display order
func (r *StickerRepository) List(ctx context.Context) ([]*models.Sticker, error) {
	query := `SELECT ` + stickerColumns + ` FROM stickers ORDER BY position ASC, name ASC`
	return r.queryStickers(ctx, query)
}

// Update updates a sticker
func (r *StickerRepository) Update(ctx context.Context, sticker *models.Sticker) error {
	query := `
		UPDATE stickers
		SET name = $1, description = $2, location_lat = $3, location_lng = $4,
		    image_reference_url = $5, reward_points = $6, position = $7, updated_at = now()
		WHERE id = $8
	`
	result, err := r.db.Exec(ctx, query,
		sticker.Name, sticker.Description, sticker.LocationLat, sticker.LocationLng,
		sticker.ImageReferenceURL, sticker.RewardPoints, sticker.Position, sticker.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sticker: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("sticker %w", ErrNotFound)
	}
	return nil
}

// Delete removes a sticker; unlock records cascade
func (r *StickerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM stickers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sticker: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("sticker %w", ErrNotFound)
	}
	return nil
}

func (r *StickerRepository) queryStickers(ctx context.Context, query string, args ...any) ([]*models.Sticker, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stickers: %w", err)
	}
	defer rows.Close()

	var stickers []*models.Sticker
	for rows.Next() {
		var s models.Sticker
		err := rows.Scan(
			&s.ID, &s.AlbumID, &s.Name, &s.Description, &s.LocationLat, &s.LocationLng,
			&s.ImageReferenceURL, &s.RewardPoints, &s.Position, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sticker: %w", err)
		}
		stickers = append(stickers, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stickers: %w", err)
	}
	return stickers, nil
}
