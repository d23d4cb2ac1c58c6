package services

import (
	"context"
	"fmt"
	"time"

	"sticker-album-backend/internal/models"

	"github.com/google/uuid"
)

// FriendStore is the persistence surface the friend service needs.
type FriendStore interface {
	Create(ctx context.Context, fr *models.FriendRequest) error
	GetByID(ctx context.Context, id string) (*models.FriendRequest, error)
	GetByPair(ctx context.Context, userA, userB string) (*models.FriendRequest, error)
	Update(ctx context.Context, fr *models.FriendRequest) error
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID, scope, status string) ([]*models.FriendRequest, error)
	ListAcceptedForUser(ctx context.Context, userID string) ([]*models.FriendRequest, error)
	ExistsAccepted(ctx context.Context, userA, userB string) (bool, error)
}

// MemberStore is the user lookup surface the friend service needs.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListExcept(ctx context.Context, userID string) ([]*models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}

// FriendService handles the friend-request workflow.
type FriendService struct {
	requests FriendStore
	users    MemberStore
	notify   Broadcaster
}

// NewFriendService creates a new friend service.
func NewFriendService(requests FriendStore, users MemberStore, notify Broadcaster) *FriendService {
	return &FriendService{requests: requests, users: users, notify: notify}
}

// Request creates or revives the friend request from one user to another.
// At most one row exists per unordered pair:
//   - an accepted pair is returned as-is (idempotent)
//   - a pending request already sent by the caller is returned as-is
//   - a pending request from the other side is auto-accepted
//   - a rejected request is reopened as pending with its direction
//     reassigned to the caller
//
// The second return value reports whether the result is a fresh pending
// request (a 201 for the API).
func (s *FriendService) Request(ctx context.Context, fromID, toID string) (*models.FriendRequest, bool, error) {
	if fromID == toID {
		return nil, false, ErrSelfRequest
	}
	target, err := s.users.GetByID(ctx, toID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.requests.GetByPair(ctx, fromID, toID)
	if err == nil {
		switch existing.Status {
		case models.FriendStatusAccepted:
			return existing, false, nil
		case models.FriendStatusPending:
			if existing.FromUserID == fromID {
				return existing, false, nil
			}
			now := time.Now()
			existing.Status = models.FriendStatusAccepted
			existing.RespondedAt = &now
			if err := s.requests.Update(ctx, existing); err != nil {
				return nil, false, err
			}
			return existing, false, nil
		case models.FriendStatusRejected:
			existing.FromUserID = fromID
			existing.ToUserID = toID
			existing.Status = models.FriendStatusPending
			existing.RespondedAt = nil
			if err := s.requests.Update(ctx, existing); err != nil {
				return nil, false, err
			}
			return existing, true, nil
		}
	}

	sender, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return nil, false, err
	}

	fr := &models.FriendRequest{
		ID:         uuid.New().String(),
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     models.FriendStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := s.requests.Create(ctx, fr); err != nil {
		return nil, false, err
	}

	notifyUser(ctx, s.notify, target.ID, Notification{
		Title:    "Friend request",
		Message:  fmt.Sprintf("%s wants to add you", sender.Username),
		Category: "friend_request",
	})
	return fr, true, nil
}

// Accept marks a pending request as accepted. Only the recipient may accept.
func (s *FriendService) Accept(ctx context.Context, requestID, actorID string) (*models.FriendRequest, error) {
	fr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if fr.ToUserID != actorID || fr.Status != models.FriendStatusPending {
		return nil, ErrNotAllowed
	}
	now := time.Now()
	fr.Status = models.FriendStatusAccepted
	fr.RespondedAt = &now
	if err := s.requests.Update(ctx, fr); err != nil {
		return nil, err
	}

	if actor, err := s.users.GetByID(ctx, actorID); err == nil {
		notifyUser(ctx, s.notify, fr.FromUserID, Notification{
			Title:    "Request accepted",
			Message:  fmt.Sprintf("%s is now your friend", actor.Username),
			Category: "friend_accept",
		})
	}
	return fr, nil
}

// Reject marks a pending request as rejected. Only the recipient may reject.
func (s *FriendService) Reject(ctx context.Context, requestID, actorID string) (*models.FriendRequest, error) {
	fr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if fr.ToUserID != actorID || fr.Status != models.FriendStatusPending {
		return nil, ErrNotAllowed
	}
	now := time.Now()
	fr.Status = models.FriendStatusRejected
	fr.RespondedAt = &now
	if err := s.requests.Update(ctx, fr); err != nil {
		return nil, err
	}
	return fr, nil
}

// Cancel deletes a pending request. Only the sender may cancel.
func (s *FriendService) Cancel(ctx context.Context, requestID, actorID string) error {
	fr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if fr.FromUserID != actorID || fr.Status != models.FriendStatusPending {
		return ErrNotAllowed
	}
	return s.requests.Delete(ctx, fr.ID)
}

// Remove deletes an accepted edge entirely. Either participant may remove.
func (s *FriendService) Remove(ctx context.Context, requestID, actorID string) error {
	fr, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if fr.Status != models.FriendStatusAccepted || (fr.FromUserID != actorID && fr.ToUserID != actorID) {
		return ErrNotAllowed
	}
	return s.requests.Delete(ctx, fr.ID)
}

// List returns the requests involving a user, filtered by scope and status.
func (s *FriendService) List(ctx context.Context, userID, scope, status string) ([]*models.FriendRequest, error) {
	switch status {
	case "", models.FriendStatusPending, models.FriendStatusAccepted, models.FriendStatusRejected:
	default:
		status = ""
	}
	return s.requests.ListForUser(ctx, userID, scope, status)
}

// Friends flattens the accepted edges involving a user to the other side.
func (s *FriendService) Friends(ctx context.Context, userID string) ([]*models.User, error) {
	accepted, err := s.requests.ListAcceptedForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accepted))
	for _, fr := range accepted {
		other := fr.ToUserID
		if other == userID {
			other = fr.FromUserID
		}
		ids = append(ids, other)
	}
	return s.users.ListByIDs(ctx, ids)
}

// Members lists every other user.
func (s *FriendService) Members(ctx context.Context, userID string) ([]*models.User, error) {
	return s.users.ListExcept(ctx, userID)
}

// IsFriend reports whether two users are friends. A user is always
// considered a friend of themselves.
func (s *FriendService) IsFriend(ctx context.Context, userA, userB string) (bool, error) {
	if userA == userB {
		return true, nil
	}
	return s.requests.ExistsAccepted(ctx, userA, userB)
}
