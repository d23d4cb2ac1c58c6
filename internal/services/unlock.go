package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sticker-album-backend/internal/metrics"
	"sticker-album-backend/internal/models"
	"sticker-album-backend/internal/repository"
	"sticker-album-backend/internal/storage"
	"sticker-album-backend/internal/vision"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UnlockStore is the persistence surface for unlock records.
type UnlockStore interface {
	GetByID(ctx context.Context, id string) (*models.UserSticker, error)
	GetOrCreate(ctx context.Context, userID, stickerID string) (*models.UserSticker, bool, error)
	Save(ctx context.Context, us *models.UserSticker) error
	ListApprovedByUser(ctx context.Context, userID string) ([]*models.UserSticker, error)
	ListByUserForAlbum(ctx context.Context, userID, albumID string) ([]*models.UserSticker, error)
	ApprovedRewardTotals(ctx context.Context) (map[string]int, error)
}

// StickerCatalog is the sticker lookup surface for the unlock service.
type StickerCatalog interface {
	GetByID(ctx context.Context, id string) (*models.Sticker, error)
	ListByAlbum(ctx context.Context, albumID string) ([]*models.Sticker, error)
}

// AlbumCatalog is the album lookup surface for the unlock service.
type AlbumCatalog interface {
	GetByID(ctx context.Context, id string) (*models.Album, error)
}

// PointsStore adjusts and reconciles user points balances.
type PointsStore interface {
	IncrementPoints(ctx context.Context, userID string, delta int) error
	SetPoints(ctx context.Context, userID string, points int) error
	ListAll(ctx context.Context) ([]*models.User, error)
}

// Analyzer is the vision-validation surface.
type Analyzer interface {
	MatchPhoto(ctx context.Context, img vision.Image, candidates []vision.Candidate) vision.Decision
	ValidateSubmission(ctx context.Context, photo vision.Image, reference *vision.Image, stickerName, albumTitle, description string) vision.Outcome
	Enabled() bool
}

// Enqueuer schedules an unlock record for asynchronous validation.
type Enqueuer interface {
	Enqueue(userStickerID string) error
}

// Uploader stores a photo under a key and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// UnlockService drives the pending → validating → approved/rejected
// state machine and the points accounting tied to it.
type UnlockService struct {
	unlocks  UnlockStore
	stickers StickerCatalog
	albums   AlbumCatalog
	points   PointsStore
	analyzer Analyzer
	queue    Enqueuer
	photos   Uploader
	notify   Broadcaster
}

// NewUnlockService creates a new unlock service.
func NewUnlockService(unlocks UnlockStore, stickers StickerCatalog, albums AlbumCatalog, points PointsStore, analyzer Analyzer, notify Broadcaster) *UnlockService {
	return &UnlockService{
		unlocks:  unlocks,
		stickers: stickers,
		albums:   albums,
		points:   points,
		analyzer: analyzer,
		notify:   notify,
	}
}

// SetQueue installs the validation queue. Wired after construction since
// the worker needs the service as its processor.
func (s *UnlockService) SetQueue(queue Enqueuer) {
	s.queue = queue
}

// SetPhotoStorage installs the object store used for inline photo bytes.
func (s *UnlockService) SetPhotoStorage(photos Uploader) {
	s.photos = photos
}

// UnlockRequest is a user's claim to have obtained a sticker. The photo
// arrives either as an already uploaded URL or as raw bytes stored
// server-side during submission.
type UnlockRequest struct {
	PhotoURL      string   `json:"photo_url"`
	PhotoData     []byte   `json:"-"`
	ContentType   string   `json:"content_type"`
	Comment       string   `json:"comment"`
	LocationLabel string   `json:"location_label"`
	LocationLat   *float64 `json:"location_lat"`
	LocationLng   *float64 `json:"location_lng"`
}

// Submit records an unlock attempt and queues it for validation. The
// record enters validating immediately; the caller never blocks on the
// external vision call. The second return value reports whether the
// record was created by this attempt.
func (s *UnlockService) Submit(ctx context.Context, userID, stickerID string, req UnlockRequest) (*models.UserSticker, bool, error) {
	if req.PhotoURL == "" && len(req.PhotoData) == 0 {
		return nil, false, ErrPhotoRequired
	}
	if _, err := s.stickers.GetByID(ctx, stickerID); err != nil {
		return nil, false, err
	}

	us, created, err := s.unlocks.GetOrCreate(ctx, userID, stickerID)
	if err != nil {
		return nil, false, err
	}

	// An earned sticker stays earned. Resubmitting the pair must not
	// restart validation or pay the reward a second time.
	if us.Validated && us.Status == models.UnlockStatusApproved {
		return us, false, nil
	}

	photoURL := req.PhotoURL
	if photoURL == "" {
		photoURL, err = s.storePhoto(ctx, userID, req)
		if err != nil {
			return nil, false, err
		}
	}

	us.PhotoURL = photoURL
	if req.Comment != "" {
		us.Comment = req.Comment
	}
	if req.LocationLabel != "" {
		us.LocationLabel = req.LocationLabel
	}
	if req.LocationLat != nil {
		us.LocationLat = req.LocationLat
	}
	if req.LocationLng != nil {
		us.LocationLng = req.LocationLng
	}
	us.Status = models.UnlockStatusValidating
	us.Validated = false
	if err := s.unlocks.Save(ctx, us); err != nil {
		return nil, false, err
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(us.ID); err != nil {
			log.Error().Err(err).Str("user_sticker_id", us.ID).Msg("Failed to enqueue validation")
		}
	}
	return us, created, nil
}

// storePhoto writes inline photo bytes to object storage and returns
// their public URL.
func (s *UnlockService) storePhoto(ctx context.Context, userID string, req UnlockRequest) (string, error) {
	if s.photos == nil {
		return "", fmt.Errorf("photo storage is not configured")
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := fmt.Sprintf("%s/%s%s", userID, uuid.New().String(), storage.ExtensionForContentType(contentType))
	url, err := s.photos.Upload(ctx, key, contentType, req.PhotoData)
	if err != nil {
		return "", fmt.Errorf("failed to store photo: %w", err)
	}
	return url, nil
}

// ProcessValidation runs one asynchronous validation attempt. A returned
// error means the attempt failed retryably: the record has been reverted
// to pending and the worker may try again.
func (s *UnlockService) ProcessValidation(ctx context.Context, userStickerID string) error {
	us, err := s.unlocks.GetByID(ctx, userStickerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("user_sticker_id", userStickerID).Msg("Unlock record no longer exists")
			return nil
		}
		return fmt.Errorf("failed to load unlock record: %w", err)
	}
	if us.Validated {
		log.Info().Str("user_sticker_id", us.ID).Msg("Unlock record already validated, skipping")
		return nil
	}

	sticker, err := s.stickers.GetByID(ctx, us.StickerID)
	if err != nil {
		return fmt.Errorf("failed to load sticker: %w", err)
	}
	albumTitle := ""
	if album, err := s.albums.GetByID(ctx, sticker.AlbumID); err == nil {
		albumTitle = album.Title
	}

	us.Status = models.UnlockStatusValidating
	if err := s.unlocks.Save(ctx, us); err != nil {
		return err
	}

	var reference *vision.Image
	if sticker.ImageReferenceURL != "" {
		reference = &vision.Image{URL: sticker.ImageReferenceURL}
	}
	outcome := s.analyzer.ValidateSubmission(ctx, vision.Image{URL: us.PhotoURL}, reference, sticker.Name, albumTitle, sticker.Description)
	notes, _ := json.Marshal(outcome)

	if outcome.Err != "" {
		// Adapter failure: revert to pending so the user can resubmit.
		us.Status = models.UnlockStatusPending
		us.Validated = false
		us.ValidationNotes = notes
		us.ValidationScore = nil
		if err := s.unlocks.Save(ctx, us); err != nil {
			return err
		}
		metrics.ValidationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("vision validation failed: %s", outcome.Err)
	}

	now := time.Now()
	wasValidated := us.Validated
	us.ValidationNotes = notes
	score := outcome.MatchScore
	us.ValidationScore = &score

	if outcome.Approved {
		us.Status = models.UnlockStatusApproved
		us.Validated = true
		us.ValidatedAt = &now
		if us.UnlockedAt == nil {
			us.UnlockedAt = &now
		}
	} else {
		us.Status = models.UnlockStatusRejected
		us.Validated = false
		us.ValidatedAt = nil
	}
	if err := s.unlocks.Save(ctx, us); err != nil {
		return err
	}

	if outcome.Approved {
		// Award exactly once per pair, guarded by the prior validated flag.
		if !wasValidated {
			if err := s.points.IncrementPoints(ctx, us.UserID, sticker.RewardPoints); err != nil {
				return fmt.Errorf("failed to award points: %w", err)
			}
		}
		metrics.ValidationsTotal.WithLabelValues("approved").Inc()
		log.Info().
			Str("user_sticker_id", us.ID).
			Str("user_id", us.UserID).
			Int("reward", sticker.RewardPoints).
			Msg("Unlock approved, points awarded")
		notifyUser(ctx, s.notify, us.UserID, Notification{
			Title:    "Sticker unlocked",
			Message:  fmt.Sprintf("%s approved, +%d points", sticker.Name, sticker.RewardPoints),
			Category: "sticker_approved",
		})
	} else {
		metrics.ValidationsTotal.WithLabelValues("rejected").Inc()
		log.Info().
			Str("user_sticker_id", us.ID).
			Str("reason", outcome.Reason).
			Msg("Unlock rejected")
		notifyUser(ctx, s.notify, us.UserID, Notification{
			Title:    "Sticker not validated",
			Message:  fmt.Sprintf("%s was not approved: %s", sticker.Name, outcome.Reason),
			Category: "sticker_rejected",
		})
	}
	return nil
}

// CarInfo is the vehicle metadata detected by the vision model.
type CarInfo struct {
	Make       string `json:"make"`
	Model      string `json:"model"`
	Generation string `json:"generation"`
	YearRange  string `json:"year_range"`
}

// MatchResult is the response of the synchronous photo-match endpoint.
type MatchResult struct {
	Unlocked        bool            `json:"unlocked"`
	AlreadyUnlocked bool            `json:"already_unlocked,omitempty"`
	Message         string          `json:"message"`
	Sticker         *models.Sticker `json:"sticker,omitempty"`
	MatchScore      float64         `json:"match_score,omitempty"`
	Car             *CarInfo        `json:"car,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	FunFact         string          `json:"fun_fact,omitempty"`
}

// MatchAlbumPhoto matches a photo against an album's catalog and, when
// the policy passes, approves the unlock synchronously. The photoURL, if
// non-empty, is persisted as the unlocked photo.
func (s *UnlockService) MatchAlbumPhoto(ctx context.Context, userID, albumID string, photo vision.Image, photoURL string) (*MatchResult, error) {
	if !s.analyzer.Enabled() {
		return &MatchResult{Message: "AI validation is disabled."}, nil
	}
	if photo.IsZero() {
		return nil, ErrPhotoRequired
	}

	if _, err := s.albums.GetByID(ctx, albumID); err != nil {
		return nil, err
	}
	stickers, err := s.stickers.ListByAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	candidates := make([]vision.Candidate, 0, len(stickers))
	for _, st := range stickers {
		candidates = append(candidates, vision.Candidate{ID: st.ID, Name: st.Name, Description: st.Description})
	}

	decision := s.analyzer.MatchPhoto(ctx, photo, candidates)
	if decision.Err != "" {
		return &MatchResult{Message: "We could not analyze the photo. Try again."}, nil
	}

	car := &CarInfo{
		Make:       decision.Make,
		Model:      decision.Model,
		Generation: decision.Generation,
		YearRange:  decision.YearRange,
	}
	base := MatchResult{Car: car, Reason: decision.Reason, FunFact: decision.FunFact}

	if !decision.Recognized {
		base.Message = decision.FunFact
		if base.Message == "" {
			base.Message = "This photo does not look like a recognizable car."
		}
		return &base, nil
	}
	if decision.StickerID == "" {
		base.Message = fmt.Sprintf("We detected a %s %s, but this album has no sticker for that model yet.", decision.Make, decision.Model)
		return &base, nil
	}

	var sticker *models.Sticker
	for _, st := range stickers {
		if st.ID == decision.StickerID {
			sticker = st
			break
		}
	}
	if sticker == nil {
		base.Message = "The suggested sticker does not belong to this album."
		return &base, nil
	}
	if decision.Confidence < vision.ApprovalThreshold {
		base.Message = "The model is not confident enough to unlock this sticker."
		return &base, nil
	}

	us, _, err := s.unlocks.GetOrCreate(ctx, userID, sticker.ID)
	if err != nil {
		return nil, err
	}
	if us.Validated && us.Status == models.UnlockStatusApproved {
		return &MatchResult{
			Unlocked:        true,
			AlreadyUnlocked: true,
			Sticker:         sticker,
			MatchScore:      decision.Confidence,
			Car:             car,
			Reason:          "You had already unlocked this sticker.",
			FunFact:         decision.FunFact,
		}, nil
	}

	now := time.Now()
	wasValidated := us.Validated
	if photoURL != "" {
		us.PhotoURL = photoURL
	}
	if us.UnlockedAt == nil {
		us.UnlockedAt = &now
	}
	score := decision.Confidence
	us.ValidationScore = &score
	us.ValidationNotes, _ = json.Marshal(decision)
	us.DetectedMake = decision.Make
	us.DetectedModel = decision.Model
	us.DetectedGeneration = decision.Generation
	us.DetectedYearRange = decision.YearRange
	if decision.FunFact != "" {
		us.FunFact = decision.FunFact
	}
	us.Status = models.UnlockStatusApproved
	us.Validated = true
	us.ValidatedAt = &now
	if err := s.unlocks.Save(ctx, us); err != nil {
		return nil, err
	}

	if !wasValidated {
		if err := s.points.IncrementPoints(ctx, userID, sticker.RewardPoints); err != nil {
			return nil, fmt.Errorf("failed to award points: %w", err)
		}
	}
	metrics.ValidationsTotal.WithLabelValues("approved").Inc()

	return &MatchResult{
		Unlocked:   true,
		Sticker:    sticker,
		MatchScore: decision.Confidence,
		Car:        car,
		Reason:     decision.Reason,
		FunFact:    decision.FunFact,
	}, nil
}

// SetUserMessage attaches a free-text message to the (user, sticker) pair.
func (s *UnlockService) SetUserMessage(ctx context.Context, userID, stickerID, message string) (*models.UserSticker, error) {
	if _, err := s.stickers.GetByID(ctx, stickerID); err != nil {
		return nil, err
	}
	us, _, err := s.unlocks.GetOrCreate(ctx, userID, stickerID)
	if err != nil {
		return nil, err
	}
	us.UserMessage = message
	if err := s.unlocks.Save(ctx, us); err != nil {
		return nil, err
	}
	return us, nil
}

// History returns the user's approved unlocks, newest first.
func (s *UnlockService) History(ctx context.Context, userID string) ([]*models.UserSticker, error) {
	return s.unlocks.ListApprovedByUser(ctx, userID)
}

// StickerProgress pairs a sticker with the user's unlock record, nil when
// the user never attempted it.
type StickerProgress struct {
	Sticker *models.Sticker     `json:"sticker"`
	Unlock  *models.UserSticker `json:"unlock,omitempty"`
}

// AlbumProgress returns an album's stickers annotated with the user's
// unlock state, in catalog order.
func (s *UnlockService) AlbumProgress(ctx context.Context, userID, albumID string) ([]*StickerProgress, error) {
	if _, err := s.albums.GetByID(ctx, albumID); err != nil {
		return nil, err
	}
	stickers, err := s.stickers.ListByAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	unlocks, err := s.unlocks.ListByUserForAlbum(ctx, userID, albumID)
	if err != nil {
		return nil, err
	}

	byStickerID := make(map[string]*models.UserSticker, len(unlocks))
	for _, us := range unlocks {
		byStickerID[us.StickerID] = us
	}

	progress := make([]*StickerProgress, 0, len(stickers))
	for _, st := range stickers {
		progress = append(progress, &StickerProgress{Sticker: st, Unlock: byStickerID[st.ID]})
	}
	return progress, nil
}

// ResyncPoints recomputes every user's points as the sum of reward values
// of their approved unlocks and corrects drift. Returns the number of
// corrected users.
func (s *UnlockService) ResyncPoints(ctx context.Context) (int, error) {
	totals, err := s.unlocks.ApprovedRewardTotals(ctx)
	if err != nil {
		return 0, err
	}
	users, err := s.points.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	corrected := 0
	for _, user := range users {
		computed := totals[user.ID]
		if user.Points == computed {
			continue
		}
		if err := s.points.SetPoints(ctx, user.ID, computed); err != nil {
			return corrected, fmt.Errorf("failed to resync points for %s: %w", user.ID, err)
		}
		log.Info().
			Str("user_id", user.ID).
			Int("old", user.Points).
			Int("new", computed).
			Msg("Corrected points drift")
		corrected++
	}
	return corrected, nil
}
