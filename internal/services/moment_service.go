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
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MomentService owns the check-in calendar and the completion cascade.
type MomentService struct {
	moments  MomentStore
	buckets  BucketStore
	uploader storage.Uploader
}

// NewMomentService creates a new instance of MomentService.
func NewMomentService(moments MomentStore, buckets BucketStore, uploader storage.Uploader) *MomentService {
	return &MomentService{
		moments:  moments,
		buckets:  buckets,
		uploader: uploader,
	}
}

// MomentDescriptor is one day's entry in a bulk calendar seed.
type MomentDescriptor struct {
	Content   string     `json:"content"`
	Date      time.Time  `json:"date"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// PhotoUpload carries an incoming proof photo.
type PhotoUpload struct {
	ContentType string
	Body        io.Reader
}

// MomentUpdate is the mutable portion of a check-in submission.
type MomentUpdate struct {
	Content   *string
	Photo     *PhotoUpload
	Completed *bool
}

// CompletionResult is the outcome of a check-in submission.
type CompletionResult struct {
	Moment         *models.Moment `json:"moment"`
	Bucket         *models.Bucket `json:"bucket,omitempty"`
	MomentsCount   int64          `json:"moments_count"`
	CompletedCount int64          `json:"completed_moments_count"`
}

// CreateMoments seeds a repeat bucket's check-in calendar. All moments
// and the bucket's window update commit atomically.
func (s *MomentService) CreateMoments(ctx context.Context, bucketID, userID primitive.ObjectID, window *models.ChallengeWindow, descriptors []MomentDescriptor) (*models.Bucket, []models.Moment, error) {
	if len(descriptors) == 0 {
		return nil, nil, apperr.New(apperr.KindValidation, "at least one moment is required")
	}

	bucket, err := s.buckets.GetBucketByID(ctx, bucketID)
	if err == mongo.ErrNoDocuments {
		return nil, nil, apperr.New(apperr.KindNotFound, "bucket not found")
	}
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "failed to fetch bucket", err)
	}
	if bucket.UserID != userID {
		return nil, nil, apperr.New(apperr.KindForbidden, "you can only manage your own buckets")
	}
	if bucket.Type != models.BucketTypeRepeat || !bucket.IsChallenging {
		return nil, nil, apperr.New(apperr.KindInvalidState, "cannot add moments to a non-active, non-repeating bucket")
	}
	if window != nil && window.EndDate.Before(window.StartDate) {
		return nil, nil, apperr.New(apperr.KindValidation, "challenge window end date precedes start date")
	}

	moments := make([]*models.Moment, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Date.IsZero() {
			return nil, nil, apperr.New(apperr.KindValidation, "every moment needs a date")
		}
		start := StartOfDay(d.Date)
		end := EndOfDay(d.Date)
		if d.StartDate != nil {
			start = *d.StartDate
		}
		if d.EndDate != nil {
			end = *d.EndDate
		}
		moments = append(moments, &models.Moment{
			UserID:    userID,
			Content:   d.Content,
			StartDate: start,
			EndDate:   end,
		})
	}

	updated, created, err := s.moments.BulkCreate(ctx, bucketID, window, moments)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "failed to create moments", err)
	}
	return updated, created, nil
}

// GetMoments lists a bucket's moments for its owner.
func (s *MomentService) GetMoments(ctx context.Context, bucketID, userID primitive.ObjectID) ([]models.Moment, error) {
	bucket, err := s.buckets.GetBucketByID(ctx, bucketID)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.New(apperr.KindNotFound, "bucket not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch bucket", err)
	}
	if bucket.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "you can only view your own moments")
	}

	moments, err := s.moments.GetMomentsByBucket(ctx, bucketID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch moments", err)
	}
	return moments, nil
}

// CompleteMoment records a day's proof and cascades completion upward.
// A photo implies completion unless an explicit flag overrides it, and
// completion is monotonic: a completed moment cannot be un-completed.
func (s *MomentService) CompleteMoment(ctx context.Context, momentID, userID primitive.ObjectID, update MomentUpdate) (*CompletionResult, error) {
	moment, err := s.moments.GetMomentByID(ctx, momentID)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.New(apperr.KindNotFound, "moment not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch moment", err)
	}

	bucket, err := s.buckets.GetBucketByID(ctx, moment.BucketID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch bucket", err)
	}
	if bucket.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "you can only update your own moments")
	}
	if !bucket.IsChallenging {
		return nil, apperr.New(apperr.KindInvalidState, "challenge has ended, no further edits are permitted")
	}

	completed := moment.IsCompleted
	if update.Photo != nil {
		completed = true
	}
	if update.Completed != nil {
		completed = *update.Completed
	}
	if moment.IsCompleted && !completed {
		return nil, apperr.New(apperr.KindInvalidState, "a completed moment cannot be reverted")
	}

	set := bson.M{}
	if update.Content != nil {
		set["content"] = *update.Content
	}

	// Upload before the row update: a storage failure must not leave a
	// moment pointing at a photo that was never stored.
	if update.Photo != nil {
		key := fmt.Sprintf("moments/%s/%s", momentID.Hex(), uuid.NewString())
		photoURL, err := s.uploader.Upload(ctx, key, update.Photo.ContentType, update.Photo.Body)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to store proof photo", err)
		}
		set["photo_url"] = photoURL
	}

	if completed && !moment.IsCompleted {
		set["is_completed"] = true
		set["completed_at"] = time.Now()
	}

	updatedMoment, updatedBucket, total, done, err := s.moments.CompleteAndReconcile(ctx, momentID, set)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update moment", err)
	}

	if updatedBucket != nil {
		logger.Log.WithField("bucket_id", updatedBucket.ID.Hex()).Info("Bucket completed, challenge ended")
	}

	return &CompletionResult{
		Moment:         updatedMoment,
		Bucket:         updatedBucket,
		MomentsCount:   total,
		CompletedCount: done,
	}, nil
}
