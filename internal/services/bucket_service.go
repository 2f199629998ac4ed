package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/logger"
	"github.com/momentum-app/momentum-server/pkg/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// BucketService encapsulates the challenge lifecycle rules for buckets.
type BucketService struct {
	buckets  BucketStore
	moments  MomentStore
	users    UserStore
	uploader storage.Uploader
}

// NewBucketService creates a new instance of BucketService.
func NewBucketService(buckets BucketStore, moments MomentStore, users UserStore, uploader storage.Uploader) *BucketService {
	return &BucketService{
		buckets:  buckets,
		moments:  moments,
		users:    users,
		uploader: uploader,
	}
}

// BucketDetail is a bucket together with its aggregation counts.
type BucketDetail struct {
	Bucket          *models.Bucket  `json:"bucket"`
	Moments         []models.Moment `json:"moments,omitempty"`
	MomentsCount    int64           `json:"moments_count"`
	CompletedCount  int64           `json:"completed_moments_count"`
}

// CreateBucket validates and stores a new bucket.
func (s *BucketService) CreateBucket(ctx context.Context, userID primitive.ObjectID, bucketType, content string) (*models.Bucket, error) {
	if content == "" {
		return nil, apperr.New(apperr.KindValidation, "type and content are required")
	}
	if bucketType != models.BucketTypeAchievement && bucketType != models.BucketTypeRepeat {
		return nil, apperr.Newf(apperr.KindValidation, "unknown bucket type %q", bucketType)
	}

	bucket := &models.Bucket{
		UserID:  userID,
		Type:    bucketType,
		Content: content,
	}

	created, err := s.buckets.CreateBucket(ctx, bucket)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create bucket", err)
	}
	return created, nil
}

// getOwnedBucket loads a bucket and enforces ownership. Shared by every
// bucket mutation.
func (s *BucketService) getOwnedBucket(ctx context.Context, bucketID, userID primitive.ObjectID) (*models.Bucket, error) {
	bucket, err := s.buckets.GetBucketByID(ctx, bucketID)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.New(apperr.KindNotFound, "bucket not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch bucket", err)
	}
	if bucket.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "you can only manage your own buckets")
	}
	return bucket, nil
}

// GetBucketDetail returns a bucket with its moments and counts.
func (s *BucketService) GetBucketDetail(ctx context.Context, bucketID, userID primitive.ObjectID) (*BucketDetail, error) {
	bucket, err := s.getOwnedBucket(ctx, bucketID, userID)
	if err != nil {
		return nil, err
	}

	moments, err := s.moments.GetMomentsByBucket(ctx, bucketID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch moments", err)
	}
	total, completed, err := s.moments.CountsByBucket(ctx, bucketID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to count moments", err)
	}

	return &BucketDetail{
		Bucket:         bucket,
		Moments:        moments,
		MomentsCount:   total,
		CompletedCount: completed,
	}, nil
}

// GetBuckets lists the user's buckets.
func (s *BucketService) GetBuckets(ctx context.Context, userID primitive.ObjectID) ([]models.Bucket, error) {
	buckets, err := s.buckets.GetBucketsByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch buckets", err)
	}
	return buckets, nil
}

// UpdateBucket changes a bucket's content.
func (s *BucketService) UpdateBucket(ctx context.Context, bucketID, userID primitive.ObjectID, content string) (*models.Bucket, error) {
	if content == "" {
		return nil, apperr.New(apperr.KindValidation, "content is required")
	}
	if _, err := s.getOwnedBucket(ctx, bucketID, userID); err != nil {
		return nil, err
	}

	updated, err := s.buckets.UpdateBucketContent(ctx, bucketID, content)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update bucket", err)
	}
	return updated, nil
}

// DeleteBucket removes a bucket, cascading to its moments.
func (s *BucketService) DeleteBucket(ctx context.Context, bucketID, userID primitive.ObjectID) error {
	if _, err := s.getOwnedBucket(ctx, bucketID, userID); err != nil {
		return err
	}
	if err := s.buckets.DeleteBucket(ctx, bucketID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete bucket", err)
	}
	logger.Log.WithField("bucket_id", bucketID.Hex()).Info("Bucket deleted successfully")
	return nil
}

// ActivateChallenge gates entry into the challenging state. Precondition
// order: exists, owned, repeat kind, not already active, free slot. The
// slot is claimed with an atomic conditional update before the bucket
// flips, so concurrent activations cannot exceed the cap.
func (s *BucketService) ActivateChallenge(ctx context.Context, bucketID, userID primitive.ObjectID) (*models.Bucket, int64, error) {
	bucket, err := s.getOwnedBucket(ctx, bucketID, userID)
	if err != nil {
		return nil, 0, err
	}
	if bucket.Type != models.BucketTypeRepeat {
		return nil, 0, apperr.New(apperr.KindInvalidState, "achievement buckets cannot be challenged")
	}
	if bucket.IsChallenging {
		return nil, 0, apperr.New(apperr.KindConflict, "challenge is already active")
	}

	reserved, err := s.users.ReserveChallengeSlot(ctx, userID)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "failed to reserve challenge slot", err)
	}
	if !reserved {
		return nil, 0, apperr.Newf(apperr.KindConflict, "at most %d challenges can be active at once", models.MaxActiveChallenges)
	}

	updated, flipped, err := s.buckets.SetChallenging(ctx, bucketID, true)
	if err != nil || !flipped {
		// Give the slot back; a concurrent request won the flip.
		if _, relErr := s.users.ReleaseChallengeSlot(ctx, userID); relErr != nil {
			logger.Log.WithError(relErr).WithField("user_id", userID.Hex()).Error("Failed to release challenge slot")
		}
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.KindInternal, "failed to activate challenge", err)
		}
		return nil, 0, apperr.New(apperr.KindConflict, "challenge is already active")
	}

	count, err := s.buckets.CountActiveChallenges(ctx, userID)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "failed to count active challenges", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"bucket_id":    bucketID.Hex(),
		"active_count": count,
	}).Info("Challenge activated")
	return updated, count, nil
}

// DeactivateChallenge leaves the challenging state and reports whether a
// slot was freed below the cap.
func (s *BucketService) DeactivateChallenge(ctx context.Context, bucketID, userID primitive.ObjectID) (*models.Bucket, int, bool, error) {
	bucket, err := s.getOwnedBucket(ctx, bucketID, userID)
	if err != nil {
		return nil, 0, false, err
	}
	if !bucket.IsChallenging {
		return nil, 0, false, apperr.New(apperr.KindInvalidState, "challenge is not active")
	}

	updated, flipped, err := s.buckets.SetChallenging(ctx, bucketID, false)
	if err != nil {
		return nil, 0, false, apperr.Wrap(apperr.KindInternal, "failed to deactivate challenge", err)
	}
	if !flipped {
		return nil, 0, false, apperr.New(apperr.KindInvalidState, "challenge is not active")
	}

	remaining, err := s.users.ReleaseChallengeSlot(ctx, userID)
	if err != nil {
		return nil, 0, false, apperr.Wrap(apperr.KindInternal, "failed to release challenge slot", err)
	}

	freedSlot := remaining < models.MaxActiveChallenges
	logger.Log.WithField("bucket_id", bucketID.Hex()).Info("Challenge deactivated")
	return updated, remaining, freedSlot, nil
}

// CompleteAchievement accepts photo proof for an achievement bucket and
// marks it completed. The upload happens before the row update so a
// storage failure never leaves a completed bucket without its photo.
func (s *BucketService) CompleteAchievement(ctx context.Context, bucketID, userID primitive.ObjectID, contentType string, photo io.Reader) (*models.Bucket, error) {
	bucket, err := s.getOwnedBucket(ctx, bucketID, userID)
	if err != nil {
		return nil, err
	}
	if bucket.Type != models.BucketTypeAchievement {
		return nil, apperr.New(apperr.KindInvalidState, "only achievement buckets complete by photo verification")
	}
	if bucket.IsCompleted {
		return nil, apperr.New(apperr.KindConflict, "achievement is already completed")
	}
	if photo == nil {
		return nil, apperr.New(apperr.KindValidation, "a verification photo is required")
	}

	key := fmt.Sprintf("achievements/%s/%s", bucketID.Hex(), uuid.NewString())
	photoURL, err := s.uploader.Upload(ctx, key, contentType, photo)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to store verification photo", err)
	}

	updated, err := s.buckets.CompleteAchievement(ctx, bucketID, photoURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to complete achievement", err)
	}
	return updated, nil
}

// SweepExpiredChallenges reconciles every active challenge whose window
// has lapsed: outstanding moments are discarded and the flag forced off.
// Called periodically by the scheduler.
func (s *BucketService) SweepExpiredChallenges(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.buckets.FindExpiredChallenges(ctx, now)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to find expired challenges", err)
	}

	swept := 0
	for _, bucket := range expired {
		if err := s.buckets.ExpireChallenge(ctx, bucket.ID, bucket.UserID); err != nil {
			logger.Log.WithError(err).WithField("bucket_id", bucket.ID.Hex()).Error("Failed to sweep expired challenge")
			continue
		}
		swept++
	}

	if swept > 0 {
		logger.Log.WithField("count", swept).Info("Expired challenges swept")
	}
	return swept, nil
}
