package repository

import (
	"context"
	"fmt"

	"sticker-album-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FriendRepository handles database operations for friend requests
type FriendRepository struct {
	db *pgxpool.Pool
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *pgxpool.Pool) *FriendRepository {
	return &FriendRepository{db: db}
}

const friendColumns = `id, from_user_id, to_user_id, status, responded_at, created_at`

func scanFriendRequest(row pgx.Row) (*models.FriendRequest, error) {
	var fr models.FriendRequest
	err := row.Scan(&fr.ID, &fr.FromUserID, &fr.ToUserID, &fr.Status, &fr.RespondedAt, &fr.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("friend request %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan friend request: %w", err)
	}
	return &fr, nil
}

// Create creates a new friend request
func (r *FriendRepository) Create(ctx context.Context, fr *models.FriendRequest) error {
	query := `
		INSERT INTO friend_requests (id, from_user_id, to_user_id, status, responded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, fr.ID, fr.FromUserID, fr.ToUserID, fr.Status, fr.RespondedAt, fr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

// GetByID retrieves a friend request by ID
func (r *FriendRepository) GetByID(ctx context.Context, id string) (*models.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests WHERE id = $1`
	return scanFriendRequest(r.db.QueryRow(ctx, query, id))
}

// GetByPair retrieves the request between two users regardless of direction
func (r *FriendRepository) GetByPair(ctx context.Context, userA, userB string) (*models.FriendRequest, error) {
	query := `
		SELECT ` + friendColumns + `
		FROM friend_requests
		WHERE (from_user_id = $1 AND to_user_id = $2)
		   OR (from_user_id = $2 AND to_user_id = $1)
		LIMIT 1
	`
	return scanFriendRequest(r.db.QueryRow(ctx, query, userA, userB))
}

// Update persists the mutable fields of a friend request, including a
// direction reassignment when a rejected request is reopened.
func (r *FriendRepository) Update(ctx context.Context, fr *models.FriendRequest) error {
	query := `
		UPDATE friend_requests
		SET from_user_id = $1, to_user_id = $2, status = $3, responded_at = $4
		WHERE id = $5
	`
	result, err := r.db.Exec(ctx, query, fr.FromUserID, fr.ToUserID, fr.Status, fr.RespondedAt, fr.ID)
	if err != nil {
		return fmt.Errorf("failed to update friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("friend request %w", ErrNotFound)
	}
	return nil
}

// Delete removes a friend request edge entirely
func (r *FriendRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("friend request %w", ErrNotFound)
	}
	return nil
}

// ListForUser retrieves requests involving a user, filtered by scope
// (all|sent|received) and optionally by status, newest first.
func (r *FriendRepository) ListForUser(ctx context.Context, userID, scope, status string) ([]*models.FriendRequest, error) {
	query := `SELECT ` + friendColumns + ` FROM friend_requests WHERE `
	args := []any{userID}
	switch scope {
	case "sent":
		query += `from_user_id = $1`
	case "received":
		query += `to_user_id = $1`
	default:
		query += `(from_user_id = $1 OR to_user_id = $1)`
	}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	return r.queryRequests(ctx, query, args...)
}

// ListAcceptedForUser retrieves the accepted edges involving a user
func (r *FriendRepository) ListAcceptedForUser(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	query := `
		SELECT ` + friendColumns + `
		FROM friend_requests
		WHERE status = $2 AND (from_user_id = $1 OR to_user_id = $1)
		ORDER BY created_at DESC
	`
	return r.queryRequests(ctx, query, userID, models.FriendStatusAccepted)
}

// ExistsAccepted checks whether two users are friends, in either direction
func (r *FriendRepository) ExistsAccepted(ctx context.Context, userA, userB string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE status = $3
			  AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, userA, userB, models.FriendStatusAccepted).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return exists, nil
}

func (r *FriendRepository) queryRequests(ctx context.Context, query string, args ...any) ([]*models.FriendRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query friend requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.FriendRequest
	for rows.Next() {
		var fr models.FriendRequest
		if err := rows.Scan(&fr.ID, &fr.FromUserID, &fr.ToUserID, &fr.Status, &fr.RespondedAt, &fr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		requests = append(requests, &fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend requests: %w", err)
	}
	return requests, nil
}
