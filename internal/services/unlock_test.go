package services

import (
	"context"
	"strings"
	"testing"

	"sticker-album-backend/internal/models"
	"sticker-album-backend/internal/repository"
	"sticker-album-backend/internal/vision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	groups []string
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, group string, v any) error {
	f.groups = append(f.groups, group)
	return nil
}

type memUnlocks struct {
	byID    map[string]*models.UserSticker
	rewards map[string]int
	nextID  int
}

func newMemUnlocks() *memUnlocks {
	return &memUnlocks{byID: make(map[string]*models.UserSticker), rewards: make(map[string]int)}
}

func (m *memUnlocks) GetByID(ctx context.Context, id string) (*models.UserSticker, error) {
	us, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *us
	return &cp, nil
}

func (m *memUnlocks) GetOrCreate(ctx context.Context, userID, stickerID string) (*models.UserSticker, bool, error) {
	for _, us := range m.byID {
		if us.UserID == userID && us.StickerID == stickerID {
			cp := *us
			return &cp, false, nil
		}
	}
	m.nextID++
	us := &models.UserSticker{
		ID:        string(rune('a' + m.nextID)),
		UserID:    userID,
		StickerID: stickerID,
		Status:    models.UnlockStatusPending,
	}
	m.byID[us.ID] = us
	cp := *us
	return &cp, true, nil
}

func (m *memUnlocks) Save(ctx context.Context, us *models.UserSticker) error {
	if _, ok := m.byID[us.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *us
	m.byID[us.ID] = &cp
	return nil
}

func (m *memUnlocks) ListApprovedByUser(ctx context.Context, userID string) ([]*models.UserSticker, error) {
	var out []*models.UserSticker
	for _, us := range m.byID {
		if us.UserID == userID && us.Status == models.UnlockStatusApproved {
			cp := *us
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUnlocks) ListByUserForAlbum(ctx context.Context, userID, albumID string) ([]*models.UserSticker, error) {
	// fixture uses a single album, so album filtering is a no-op here
	var out []*models.UserSticker
	for _, us := range m.byID {
		if us.UserID == userID {
			cp := *us
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUnlocks) ApprovedRewardTotals(ctx context.Context) (map[string]int, error) {
	return m.rewards, nil
}

type memCatalog struct {
	stickers map[string]*models.Sticker
	albums   map[string]*models.Album
}

func newMemCatalog() *memCatalog {
	return &memCatalog{stickers: make(map[string]*models.Sticker), albums: make(map[string]*models.Album)}
}

func (m *memCatalog) GetByID(ctx context.Context, id string) (*models.Sticker, error) {
	st, ok := m.stickers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return st, nil
}

func (m *memCatalog) ListByAlbum(ctx context.Context, albumID string) ([]*models.Sticker, error) {
	var out []*models.Sticker
	for _, st := range m.stickers {
		if st.AlbumID == albumID {
			out = append(out, st)
		}
	}
	return out, nil
}

type memAlbums struct {
	catalog *memCatalog
}

func (m *memAlbums) GetByID(ctx context.Context, id string) (*models.Album, error) {
	album, ok := m.catalog.albums[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return album, nil
}

type memPoints struct {
	users map[string]*models.User
}

func newMemPoints() *memPoints {
	return &memPoints{users: make(map[string]*models.User)}
}

func (m *memPoints) IncrementPoints(ctx context.Context, userID string, delta int) error {
	m.users[userID].Points += delta
	return nil
}

func (m *memPoints) SetPoints(ctx context.Context, userID string, points int) error {
	m.users[userID].Points = points
	return nil
}

func (m *memPoints) ListAll(ctx context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

type fakeAnalyzer struct {
	enabled  bool
	outcome  vision.Outcome
	decision vision.Decision
}

func (f *fakeAnalyzer) MatchPhoto(ctx context.Context, img vision.Image, candidates []vision.Candidate) vision.Decision {
	return f.decision
}

func (f *fakeAnalyzer) ValidateSubmission(ctx context.Context, photo vision.Image, reference *vision.Image, stickerName, albumTitle, description string) vision.Outcome {
	return f.outcome
}

func (f *fakeAnalyzer) Enabled() bool { return f.enabled }

type fakeQueue struct {
	ids []string
}

func (f *fakeQueue) Enqueue(id string) error {
	f.ids = append(f.ids, id)
	return nil
}

type fakeUploader struct {
	key         string
	contentType string
	data        []byte
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	f.key, f.contentType, f.data = key, contentType, data
	return "https://cdn/" + key, nil
}

func newUnlockFixture(analyzer *fakeAnalyzer) (*UnlockService, *memUnlocks, *memCatalog, *memPoints, *fakeQueue) {
	unlocks := newMemUnlocks()
	catalog := newMemCatalog()
	points := newMemPoints()
	queue := &fakeQueue{}

	catalog.albums["album-1"] = &models.Album{ID: "album-1", Title: "Classic Cars"}
	catalog.stickers["sticker-1"] = &models.Sticker{
		ID: "sticker-1", AlbumID: "album-1", Name: "911 Turbo", RewardPoints: 50,
	}
	points.users["user-1"] = &models.User{ID: "user-1", Username: "alice"}

	svc := NewUnlockService(unlocks, catalog, &memAlbums{catalog: catalog}, points, analyzer, &fakeBroadcaster{})
	svc.SetQueue(queue)
	return svc, unlocks, catalog, points, queue
}

func TestSubmitQueuesValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, queue := newUnlockFixture(&fakeAnalyzer{enabled: true})

	us, created, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{PhotoURL: "https://cdn/photo.jpg"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.UnlockStatusValidating, us.Status)
	assert.False(t, us.Validated)
	require.Len(t, queue.ids, 1)
	assert.Equal(t, us.ID, queue.ids[0])
}

func TestSubmitRequiresPhoto(t *testing.T) {
	svc, _, _, _, _ := newUnlockFixture(&fakeAnalyzer{enabled: true})

	_, _, err := svc.Submit(context.Background(), "user-1", "sticker-1", UnlockRequest{})
	assert.ErrorIs(t, err, ErrPhotoRequired)
}

func TestProcessValidationApprovedAwardsOnce(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{
		enabled: true,
		outcome: vision.Outcome{Approved: true, IsMatch: true, MatchScore: 0.9},
	}
	svc, unlocks, _, points, _ := newUnlockFixture(analyzer)

	us, _, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{PhotoURL: "https://cdn/photo.jpg"})
	require.NoError(t, err)

	require.NoError(t, svc.ProcessValidation(ctx, us.ID))
	saved := unlocks.byID[us.ID]
	assert.Equal(t, models.UnlockStatusApproved, saved.Status)
	assert.True(t, saved.Validated)
	assert.NotNil(t, saved.UnlockedAt)
	assert.Equal(t, 50, points.users["user-1"].Points)

	// A duplicate job for an already validated record must not pay again.
	require.NoError(t, svc.ProcessValidation(ctx, us.ID))
	assert.Equal(t, 50, points.users["user-1"].Points)
}

func TestSubmitAfterApprovalKeepsReward(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{
		enabled: true,
		outcome: vision.Outcome{Approved: true, IsMatch: true, MatchScore: 0.9},
	}
	svc, unlocks, _, points, queue := newUnlockFixture(analyzer)

	us, _, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{PhotoURL: "https://cdn/photo.jpg"})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessValidation(ctx, us.ID))
	require.Equal(t, 50, points.users["user-1"].Points)

	// Submitting the earned pair again returns the record untouched:
	// no new validation run, no second reward.
	again, created, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{PhotoURL: "https://cdn/other.jpg"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.UnlockStatusApproved, again.Status)
	assert.True(t, again.Validated)
	assert.Len(t, queue.ids, 1)

	require.NoError(t, svc.ProcessValidation(ctx, again.ID))
	assert.Equal(t, 50, points.users["user-1"].Points)
	saved := unlocks.byID[us.ID]
	assert.Equal(t, models.UnlockStatusApproved, saved.Status)
	assert.Equal(t, "https://cdn/photo.jpg", saved.PhotoURL)
}

func TestSubmitStoresInlinePhoto(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, queue := newUnlockFixture(&fakeAnalyzer{enabled: true})
	photos := &fakeUploader{}
	svc.SetPhotoStorage(photos)

	us, created, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{
		PhotoData:   []byte("raw-bytes"),
		ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []byte("raw-bytes"), photos.data)
	assert.Equal(t, "image/png", photos.contentType)
	assert.True(t, strings.HasPrefix(photos.key, "user-1/"))
	assert.True(t, strings.HasSuffix(photos.key, ".png"))
	assert.Equal(t, "https://cdn/"+photos.key, us.PhotoURL)
	require.Len(t, queue.ids, 1)
}

func TestProcessValidationErrorRevertsToPending(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{
		enabled: true,
		outcome: vision.Outcome{Err: "upstream timeout"},
	}
	svc, unlocks, _, points, _ := newUnlockFixture(analyzer)

	us, _, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{PhotoURL: "https://cdn/photo.jpg"})
	require.NoError(t, err)

	err = svc.ProcessValidation(ctx, us.ID)
	require.Error(t, err)
	saved := unlocks.byID[us.ID]
	assert.Equal(t, models.UnlockStatusPending, saved.Status)
	assert.False(t, saved.Validated)
	assert.Nil(t, saved.ValidationScore)
	assert.Equal(t, 0, points.users["user-1"].Points)
}

func TestProcessValidationRejectedAllowsResubmit(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{
		enabled: true,
		outcome: vision.Outcome{Approved: false, IsMatch: false, MatchScore: 0.2, Reason: "different car"},
	}
	svc, unlocks, _, points, _ := newUnlockFixture(analyzer)

	us, _, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{PhotoURL: "https://cdn/photo.jpg"})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessValidation(ctx, us.ID))

	saved := unlocks.byID[us.ID]
	assert.Equal(t, models.UnlockStatusRejected, saved.Status)
	assert.Equal(t, 0, points.users["user-1"].Points)

	// The same pair can try again with a better photo.
	again, created, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{PhotoURL: "https://cdn/better.jpg"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, us.ID, again.ID)
	assert.Equal(t, models.UnlockStatusValidating, again.Status)
}

func TestProcessValidationUnknownRecordIsDropped(t *testing.T) {
	svc, _, _, _, _ := newUnlockFixture(&fakeAnalyzer{enabled: true})
	assert.NoError(t, svc.ProcessValidation(context.Background(), "no-such-id"))
}

func TestMatchAlbumPhotoUnlocks(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{
		enabled: true,
		decision: vision.Decision{
			Recognized: true,
			Make:       "Porsche",
			Model:      "911",
			Confidence: 0.92,
			StickerID:  "sticker-1",
			FunFact:    "The 911 kept its silhouette for 60 years.",
		},
	}
	svc, _, _, points, _ := newUnlockFixture(analyzer)

	result, err := svc.MatchAlbumPhoto(ctx, "user-1", "album-1", vision.Image{URL: "https://cdn/p.jpg"}, "https://cdn/p.jpg")
	require.NoError(t, err)
	assert.True(t, result.Unlocked)
	assert.False(t, result.AlreadyUnlocked)
	require.NotNil(t, result.Sticker)
	assert.Equal(t, "sticker-1", result.Sticker.ID)
	assert.Equal(t, "Porsche", result.Car.Make)
	assert.Equal(t, 50, points.users["user-1"].Points)

	// Matching the same car again reports the existing unlock, no extra points.
	result, err = svc.MatchAlbumPhoto(ctx, "user-1", "album-1", vision.Image{URL: "https://cdn/p2.jpg"}, "https://cdn/p2.jpg")
	require.NoError(t, err)
	assert.True(t, result.Unlocked)
	assert.True(t, result.AlreadyUnlocked)
	assert.Equal(t, 50, points.users["user-1"].Points)
}

func TestMatchAlbumPhotoLowConfidence(t *testing.T) {
	analyzer := &fakeAnalyzer{
		enabled: true,
		decision: vision.Decision{
			Recognized: true,
			Make:       "Porsche",
			Model:      "911",
			Confidence: 0.4,
			StickerID:  "sticker-1",
		},
	}
	svc, _, _, points, _ := newUnlockFixture(analyzer)

	result, err := svc.MatchAlbumPhoto(context.Background(), "user-1", "album-1", vision.Image{URL: "https://cdn/p.jpg"}, "")
	require.NoError(t, err)
	assert.False(t, result.Unlocked)
	assert.Equal(t, 0, points.users["user-1"].Points)
}

func TestMatchAlbumPhotoUnrecognized(t *testing.T) {
	analyzer := &fakeAnalyzer{
		enabled:  true,
		decision: vision.Decision{Recognized: false, FunFact: "That looks like a toaster."},
	}
	svc, _, _, _, _ := newUnlockFixture(analyzer)

	result, err := svc.MatchAlbumPhoto(context.Background(), "user-1", "album-1", vision.Image{URL: "https://cdn/p.jpg"}, "")
	require.NoError(t, err)
	assert.False(t, result.Unlocked)
	assert.Equal(t, "That looks like a toaster.", result.Message)
}

func TestMatchAlbumPhotoDisabled(t *testing.T) {
	svc, _, _, _, _ := newUnlockFixture(&fakeAnalyzer{enabled: false})

	result, err := svc.MatchAlbumPhoto(context.Background(), "user-1", "album-1", vision.Image{URL: "https://cdn/p.jpg"}, "")
	require.NoError(t, err)
	assert.False(t, result.Unlocked)
	assert.NotEmpty(t, result.Message)
}

func TestAlbumProgressAnnotatesUnlockState(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{
		enabled: true,
		outcome: vision.Outcome{Approved: true, IsMatch: true, MatchScore: 0.9},
	}
	svc, _, catalog, _, _ := newUnlockFixture(analyzer)
	catalog.stickers["sticker-2"] = &models.Sticker{ID: "sticker-2", AlbumID: "album-1", Name: "Countach"}

	us, _, err := svc.Submit(ctx, "user-1", "sticker-1", UnlockRequest{PhotoURL: "https://cdn/photo.jpg"})
	require.NoError(t, err)
	require.NoError(t, svc.ProcessValidation(ctx, us.ID))

	progress, err := svc.AlbumProgress(ctx, "user-1", "album-1")
	require.NoError(t, err)
	require.Len(t, progress, 2)

	byName := make(map[string]*StickerProgress)
	for _, p := range progress {
		byName[p.Sticker.Name] = p
	}
	require.NotNil(t, byName["911 Turbo"].Unlock)
	assert.Equal(t, models.UnlockStatusApproved, byName["911 Turbo"].Unlock.Status)
	assert.Nil(t, byName["Countach"].Unlock)
}

func TestResyncPointsCorrectsDrift(t *testing.T) {
	svc, unlocks, _, points, _ := newUnlockFixture(&fakeAnalyzer{enabled: true})

	points.users["user-1"].Points = 120
	unlocks.rewards["user-1"] = 50

	corrected, err := svc.ResyncPoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, corrected)
	assert.Equal(t, 50, points.users["user-1"].Points)

	// Already consistent, nothing to do.
	corrected, err = svc.ResyncPoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, corrected)
}
