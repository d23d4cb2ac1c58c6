package repository

import (
	"context"
	"fmt"

	"sticker-album-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AlbumRepository handles database operations for albums
type AlbumRepository struct {
	db *pgxpool.Pool
}

// NewAlbumRepository creates a new album repository
func NewAlbumRepository(db *pgxpool.Pool) *AlbumRepository {
	return &AlbumRepository{db: db}
}

const albumColumns = `id, title, description, theme, cover_image_url, is_premium, price, created_at, updated_at`

// Create creates a new album
func (r *AlbumRepository) Create(ctx context.Context, album *models.Album) error {
	query := `
		INSERT INTO albums (id, title, description, theme, cover_image_url, is_premium, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		album.ID, album.Title, album.Description, album.Theme,
		album.CoverImageURL, album.IsPremium, album.Price,
		album.CreatedAt, album.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create album: %w", err)
	}
	return nil
}

// GetByID retrieves an album by ID
func (r *AlbumRepository) GetByID(ctx context.Context, id string) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE id = $1`
	var a models.Album
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Title, &a.Description, &a.Theme, &a.CoverImageURL,
		&a.IsPremium, &a.Price, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("album %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return &a, nil
}

// List retrieves all albums ordered by title
func (r *AlbumRepository) List(ctx context.Context) ([]*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums ORDER BY title ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		var a models.Album
		err := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.Theme, &a.CoverImageURL,
			&a.IsPremium, &a.Price, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating albums: %w", err)
	}
	return albums, nil
}

// Update updates an album
func (r *AlbumRepository) Update(ctx context.Context, album *models.Album) error {
	query := `
		UPDATE albums
		SET title = $1, description = $2, theme = $3, cover_image_url = $4,
		    is_premium = $5, price = $6, updated_at = now()
		WHERE id = $7
	`
	result, err := r.db.Exec(ctx, query,
		album.Title, album.Description, album.Theme, album.CoverImageURL,
		album.IsPremium, album.Price, album.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update album: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("album %w", ErrNotFound)
	}
	return nil
}

// Delete removes an album; stickers and unlock records cascade
func (r *AlbumRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("album %w", ErrNotFound)
	}
	return nil
}
