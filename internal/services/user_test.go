package services

import (
	"context"
	"testing"
	"time"

	"sticker-album-backend/internal/models"
	"sticker-album-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	byID map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]*models.User)}
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) Exists(ctx context.Context, username, email string) (bool, error) {
	for _, u := range m.byID {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdateProfile(ctx context.Context, user *models.User) error {
	if _, ok := m.byID[user.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) Leaderboard(ctx context.Context, limit int) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.byID {
		out = append(out, u)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newUserService() (*UserService, *memUsers) {
	store := newMemUsers()
	return NewUserService(store, "test-secret", time.Hour, 24*time.Hour), store
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService()

	user, err := svc.Register(ctx, "alice", "Alice@Example.com", "sup3rsecret")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "sup3rsecret", user.PasswordHash)

	loggedIn, pair, err := svc.Login(ctx, "alice@example.com", "sup3rsecret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newUserService()
	_, err := svc.Register(context.Background(), "alice", "alice@example.com", "short")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "sup3rsecret")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "other@example.com", "sup3rsecret")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "sup3rsecret")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc, _ := newUserService()

	pair, err := svc.GenerateTokenPair("user-42")
	require.NoError(t, err)

	userID, err := svc.ValidateAccessToken(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	svc, _ := newUserService()

	pair, err := svc.GenerateTokenPair("user-42")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.Refresh)
	assert.Error(t, err)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "sup3rsecret")
	require.NoError(t, err)
	pair, err := svc.GenerateTokenPair(user.ID)
	require.NoError(t, err)

	fresh, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	userID, err := svc.ValidateAccessToken(fresh.Access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	// Access tokens must not pass as refresh tokens.
	_, err = svc.Refresh(ctx, pair.Access)
	assert.Error(t, err)
}

func TestTokenSignedWithOtherSecretIsRejected(t *testing.T) {
	svc, _ := newUserService()
	other := NewUserService(newMemUsers(), "other-secret", time.Hour, 24*time.Hour)

	pair, err := other.GenerateTokenPair("user-42")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.Access)
	assert.Error(t, err)
}

func TestUpdateProfilePartial(t *testing.T) {
	ctx := context.Background()
	svc, _ := newUserService()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "sup3rsecret")
	require.NoError(t, err)

	bio := "car spotter"
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "car spotter", updated.Bio)
	assert.Equal(t, "alice", updated.Username)

	empty := "   "
	updated, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Username: &empty})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Username)
}

func TestLeaderboardClampsLimit(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService()

	for i := 0; i < 30; i++ {
		user := &models.User{ID: string(rune('A' + i)), Username: string(rune('A' + i))}
		store.byID[user.ID] = user
	}

	users, err := svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, users, 20)

	users, err = svc.Leaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, users, 5)
}
