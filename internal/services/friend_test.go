package services

import (
	"context"
	"testing"

	"sticker-album-backend/internal/models"
	"sticker-album-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memFriends struct {
	byID map[string]*models.FriendRequest
}

func newMemFriends() *memFriends {
	return &memFriends{byID: make(map[string]*models.FriendRequest)}
}

func (m *memFriends) Create(ctx context.Context, fr *models.FriendRequest) error {
	cp := *fr
	m.byID[fr.ID] = &cp
	return nil
}

func (m *memFriends) GetByID(ctx context.Context, id string) (*models.FriendRequest, error) {
	fr, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *fr
	return &cp, nil
}

func (m *memFriends) GetByPair(ctx context.Context, userA, userB string) (*models.FriendRequest, error) {
	for _, fr := range m.byID {
		if (fr.FromUserID == userA && fr.ToUserID == userB) || (fr.FromUserID == userB && fr.ToUserID == userA) {
			cp := *fr
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memFriends) Update(ctx context.Context, fr *models.FriendRequest) error {
	if _, ok := m.byID[fr.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *fr
	m.byID[fr.ID] = &cp
	return nil
}

func (m *memFriends) Delete(ctx context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memFriends) ListForUser(ctx context.Context, userID, scope, status string) ([]*models.FriendRequest, error) {
	var out []*models.FriendRequest
	for _, fr := range m.byID {
		switch scope {
		case "sent":
			if fr.FromUserID != userID {
				continue
			}
		case "received":
			if fr.ToUserID != userID {
				continue
			}
		default:
			if fr.FromUserID != userID && fr.ToUserID != userID {
				continue
			}
		}
		if status != "" && fr.Status != status {
			continue
		}
		cp := *fr
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memFriends) ListAcceptedForUser(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	return m.ListForUser(ctx, userID, "all", models.FriendStatusAccepted)
}

func (m *memFriends) ExistsAccepted(ctx context.Context, userA, userB string) (bool, error) {
	fr, err := m.GetByPair(ctx, userA, userB)
	if err != nil {
		return false, nil
	}
	return fr.Status == models.FriendStatusAccepted, nil
}

type memMembers struct {
	users map[string]*models.User
}

func newMemMembers(names ...string) *memMembers {
	m := &memMembers{users: make(map[string]*models.User)}
	for _, name := range names {
		m.users[name] = &models.User{ID: name, Username: name}
	}
	return m
}

func (m *memMembers) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *memMembers) ListExcept(ctx context.Context, userID string) ([]*models.User, error) {
	var out []*models.User
	for id, u := range m.users {
		if id != userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memMembers) ListByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func newFriendFixture() (*FriendService, *memFriends, *fakeBroadcaster) {
	store := newMemFriends()
	broadcaster := &fakeBroadcaster{}
	svc := NewFriendService(store, newMemMembers("alice", "bob", "carol"), broadcaster)
	return svc, store, broadcaster
}

func TestFriendRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, broadcaster := newFriendFixture()

	fr, created, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.FriendStatusPending, fr.Status)
	assert.NotEmpty(t, broadcaster.groups)

	accepted, err := svc.Accept(ctx, fr.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusAccepted, accepted.Status)
	assert.NotNil(t, accepted.RespondedAt)

	ok, err := svc.IsFriend(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFriendRequestToSelf(t *testing.T) {
	svc, _, _ := newFriendFixture()
	_, _, err := svc.Request(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, ErrSelfRequest)
}

func TestFriendRequestToUnknownUser(t *testing.T) {
	svc, _, _ := newFriendFixture()
	_, _, err := svc.Request(context.Background(), "alice", "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFriendRequestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newFriendFixture()

	fr, _, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)

	again, created, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, fr.ID, again.ID)
	assert.Len(t, store.byID, 1)
}

func TestCrossingRequestsAutoAccept(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newFriendFixture()

	fr, _, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)

	// Bob asking Alice back means both sides want the edge.
	crossed, created, err := svc.Request(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, fr.ID, crossed.ID)
	assert.Equal(t, models.FriendStatusAccepted, crossed.Status)
	assert.Len(t, store.byID, 1)
}

func TestRejectedRequestReopensWithNewDirection(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFriendFixture()

	fr, _, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, fr.ID, "bob")
	require.NoError(t, err)

	// Bob changes his mind; the old row is revived pointing the other way.
	reopened, created, err := svc.Request(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, fr.ID, reopened.ID)
	assert.Equal(t, "bob", reopened.FromUserID)
	assert.Equal(t, "alice", reopened.ToUserID)
	assert.Equal(t, models.FriendStatusPending, reopened.Status)
	assert.Nil(t, reopened.RespondedAt)
}

func TestOnlyRecipientMayAccept(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFriendFixture()

	fr, _, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.Accept(ctx, fr.ID, "alice")
	assert.ErrorIs(t, err, ErrNotAllowed)
	_, err = svc.Accept(ctx, fr.ID, "carol")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestOnlySenderMayCancel(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newFriendFixture()

	fr, _, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(ctx, fr.ID, "bob"), ErrNotAllowed)
	require.NoError(t, svc.Cancel(ctx, fr.ID, "alice"))
	assert.Empty(t, store.byID)
}

func TestRemoveFriendship(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newFriendFixture()

	fr, _, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)

	// Not accepted yet, remove is not applicable.
	assert.ErrorIs(t, svc.Remove(ctx, fr.ID, "alice"), ErrNotAllowed)

	_, err = svc.Accept(ctx, fr.ID, "bob")
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, fr.ID, "alice"))
	assert.Empty(t, store.byID)

	ok, err := svc.IsFriend(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFriendsFlattensAcceptedEdges(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newFriendFixture()

	fr1, _, err := svc.Request(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Accept(ctx, fr1.ID, "bob")
	require.NoError(t, err)

	fr2, _, err := svc.Request(ctx, "carol", "alice")
	require.NoError(t, err)
	_, err = svc.Accept(ctx, fr2.ID, "alice")
	require.NoError(t, err)

	friends, err := svc.Friends(ctx, "alice")
	require.NoError(t, err)
	names := make([]string, 0, len(friends))
	for _, u := range friends {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, names)
}

func TestIsFriendSelf(t *testing.T) {
	svc, _, _ := newFriendFixture()
	ok, err := svc.IsFriend(context.Background(), "alice", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}
