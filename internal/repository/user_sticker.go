package repository

import (
	"context"
	"fmt"
	"time"

	"sticker-album-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStickerRepository handles database operations for unlock records
type UserStickerRepository struct {
	db *pgxpool.Pool
}

// NewUserStickerRepository creates a new unlock record repository
func NewUserStickerRepository(db *pgxpool.Pool) *UserStickerRepository {
	return &UserStickerRepository{db: db}
}

const userStickerColumns = `id, user_id, sticker_id, photo_url, comment, status, validated,
	validated_at, validation_notes, validation_score, unlocked_at,
	detected_make, detected_model, detected_generation, detected_year_range,
	fun_fact, user_message, location_label, location_lat, location_lng,
	created_at, updated_at`

func scanUserSticker(row pgx.Row) (*models.UserSticker, error) {
	var us models.UserSticker
	err := row.Scan(
		&us.ID, &us.UserID, &us.StickerID, &us.PhotoURL, &us.Comment, &us.Status, &us.Validated,
		&us.ValidatedAt, &us.ValidationNotes, &us.ValidationScore, &us.UnlockedAt,
		&us.DetectedMake, &us.DetectedModel, &us.DetectedGeneration, &us.DetectedYearRange,
		&us.FunFact, &us.UserMessage, &us.LocationLabel, &us.LocationLat, &us.LocationLng,
		&us.CreatedAt, &us.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("unlock record %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan unlock record: %w", err)
	}
	return &us, nil
}

// GetByID retrieves an unlock record by ID
func (r *UserStickerRepository) GetByID(ctx context.Context, id string) (*models.UserSticker, error) {
	query := `SELECT ` + userStickerColumns + ` FROM user_stickers WHERE id = $1`
	return scanUserSticker(r.db.QueryRow(ctx, query, id))
}

// GetByPair retrieves the unlock record for a (user, sticker) pair
func (r *UserStickerRepository) GetByPair(ctx context.Context, userID, stickerID string) (*models.UserSticker, error) {
	query := `SELECT ` + userStickerColumns + ` FROM user_stickers WHERE user_id = $1 AND sticker_id = $2`
	return scanUserSticker(r.db.QueryRow(ctx, query, userID, stickerID))
}

// GetOrCreate returns the unlock record for the pair, creating a fresh
// pending record when none exists. The second return value reports
// whether a new row was inserted.
func (r *UserStickerRepository) GetOrCreate(ctx context.Context, userID, stickerID string) (*models.UserSticker, bool, error) {
	existing, err := r.GetByPair(ctx, userID, stickerID)
	if err == nil {
		return existing, false, nil
	}

	now := time.Now()
	us := &models.UserSticker{
		ID:        uuid.New().String(),
		UserID:    userID,
		StickerID: stickerID,
		Status:    models.UnlockStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := `
		INSERT INTO user_stickers (id, user_id, sticker_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, sticker_id) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query, us.ID, us.UserID, us.StickerID, us.Status, us.CreatedAt, us.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create unlock record: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Lost the race; the row exists now.
		existing, err := r.GetByPair(ctx, userID, stickerID)
		return existing, false, err
	}
	return us, true, nil
}

// Save persists all mutable fields of an unlock record
func (r *UserStickerRepository) Save(ctx context.Context, us *models.UserSticker) error {
	query := `
		UPDATE user_stickers
		SET photo_url = $1, comment = $2, status = $3, validated = $4,
		    validated_at = $5, validation_notes = $6, validation_score = $7, unlocked_at = $8,
		    detected_make = $9, detected_model = $10, detected_generation = $11, detected_year_range = $12,
		    fun_fact = $13, user_message = $14, location_label = $15, location_lat = $16, location_lng = $17,
		    updated_at = now()
		WHERE id = $18
	`
	result, err := r.db.Exec(ctx, query,
		us.PhotoURL, us.Comment, us.Status, us.Validated,
		us.ValidatedAt, us.ValidationNotes, us.ValidationScore, us.UnlockedAt,
		us.DetectedMake, us.DetectedModel, us.DetectedGeneration, us.DetectedYearRange,
		us.FunFact, us.UserMessage, us.LocationLabel, us.LocationLat, us.LocationLng,
		us.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save unlock record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("unlock record %w", ErrNotFound)
	}
	return nil
}

// ListApprovedByUser retrieves a user's approved unlocks, newest first
func (r *UserStickerRepository) ListApprovedByUser(ctx context.Context, userID string) ([]*models.UserSticker, error) {
	query := `
		SELECT ` + userStickerColumns + `
		FROM user_stickers
		WHERE user_id = $1 AND status = $2
		ORDER BY unlocked_at DESC NULLS LAST
	`
	rows, err := r.db.Query(ctx, query, userID, models.UnlockStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlock records: %w", err)
	}
	defer rows.Close()

	var records []*models.UserSticker
	for rows.Next() {
		var us models.UserSticker
		err := rows.Scan(
			&us.ID, &us.UserID, &us.StickerID, &us.PhotoURL, &us.Comment, &us.Status, &us.Validated,
			&us.ValidatedAt, &us.ValidationNotes, &us.ValidationScore, &us.UnlockedAt,
			&us.DetectedMake, &us.DetectedModel, &us.DetectedGeneration, &us.DetectedYearRange,
			&us.FunFact, &us.UserMessage, &us.LocationLabel, &us.LocationLat, &us.LocationLng,
			&us.CreatedAt, &us.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unlock record: %w", err)
		}
		records = append(records, &us)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unlock records: %w", err)
	}
	return records, nil
}

// ListByUserForAlbum retrieves a user's unlock records for one album
func (r *UserStickerRepository) ListByUserForAlbum(ctx context.Context, userID, albumID string) ([]*models.UserSticker, error) {
	query := `
		SELECT ` + prefixColumns("us.", userStickerColumns) + `
		FROM user_stickers us
		JOIN stickers s ON s.id = us.sticker_id
		WHERE us.user_id = $1 AND s.album_id = $2
	`
	rows, err := r.db.Query(ctx, query, userID, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlock records: %w", err)
	}
	defer rows.Close()

	var records []*models.UserSticker
	for rows.Next() {
		var us models.UserSticker
		err := rows.Scan(
			&us.ID, &us.UserID, &us.StickerID, &us.PhotoURL, &us.Comment, &us.Status, &us.Validated,
			&us.ValidatedAt, &us.ValidationNotes, &us.ValidationScore, &us.UnlockedAt,
			&us.DetectedMake, &us.DetectedModel, &us.DetectedGeneration, &us.DetectedYearRange,
			&us.FunFact, &us.UserMessage, &us.LocationLabel, &us.LocationLat, &us.LocationLng,
			&us.CreatedAt, &us.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unlock record: %w", err)
		}
		records = append(records, &us)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unlock records: %w", err)
	}
	return records, nil
}

// ApprovedRewardTotals computes, per user, the sum of reward values of all
// approved unlocks. Used to detect and correct points drift.
func (r *UserStickerRepository) ApprovedRewardTotals(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT us.user_id, COALESCE(SUM(s.reward_points), 0)
		FROM user_stickers us
		JOIN stickers s ON s.id = us.sticker_id
		WHERE us.status = $1
		GROUP BY us.user_id
	`
	rows, err := r.db.Query(ctx, query, models.UnlockStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var userID string
		var total int
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan reward total: %w", err)
		}
		totals[userID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reward totals: %w", err)
	}
	return totals, nil
}
