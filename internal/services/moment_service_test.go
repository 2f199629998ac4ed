package services

import (
	"context"
	"testing"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newMomentFixture(t *testing.T) (*fakeStore, *MomentService, primitive.ObjectID, *models.Bucket) {
	t.Helper()
	store := newFakeStore()
	user := store.addUser(&models.User{Nickname: "mina", Email: "mina@example.com"})
	bucket := store.addBucket(&models.Bucket{
		UserID:        user.ID,
		Type:          models.BucketTypeRepeat,
		Content:       "morning run",
		IsChallenging: true,
	})
	user.ActiveChallengeCount = 1
	svc := NewMomentService(store, store, &fakeUploader{})
	return store, svc, user.ID, bucket
}

func day(offset int) time.Time {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.Local)
	return base.AddDate(0, 0, offset)
}

func TestCreateMoments_SeedsCalendarAtomically(t *testing.T) {
	_, svc, userID, bucket := newMomentFixture(t)

	window := &models.ChallengeWindow{
		StartDate: day(0),
		EndDate:   day(6),
		Frequency: "daily",
	}
	descriptors := []MomentDescriptor{
		{Content: "day 1", Date: day(0)},
		{Content: "day 2", Date: day(1)},
		{Content: "day 3", Date: day(2)},
	}

	updated, moments, err := svc.CreateMoments(context.Background(), bucket.ID, userID, window, descriptors)
	require.NoError(t, err)
	require.Len(t, moments, 3)
	assert.Equal(t, "daily", updated.Frequency)
	require.NotNil(t, updated.StartDate)

	// Each moment spans its whole local day.
	first := moments[0]
	assert.Equal(t, 0, first.StartDate.Hour())
	assert.Equal(t, 23, first.EndDate.Hour())
	assert.True(t, first.EndDate.After(first.StartDate))
}

func TestCreateMoments_InactiveBucketRejected(t *testing.T) {
	store, svc, userID, _ := newMomentFixture(t)

	idle := store.addBucket(&models.Bucket{UserID: userID, Type: models.BucketTypeRepeat, Content: "not active"})
	_, _, err := svc.CreateMoments(context.Background(), idle.ID, userID, nil, []MomentDescriptor{{Content: "x", Date: day(0)}})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	achievement := store.addBucket(&models.Bucket{UserID: userID, Type: models.BucketTypeAchievement, Content: "one-shot"})
	_, _, err = svc.CreateMoments(context.Background(), achievement.ID, userID, nil, []MomentDescriptor{{Content: "x", Date: day(0)}})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestCreateMoments_ValidatesInput(t *testing.T) {
	_, svc, userID, bucket := newMomentFixture(t)
	ctx := context.Background()

	_, _, err := svc.CreateMoments(ctx, bucket.ID, userID, nil, nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	badWindow := &models.ChallengeWindow{StartDate: day(6), EndDate: day(0)}
	_, _, err = svc.CreateMoments(ctx, bucket.ID, userID, badWindow, []MomentDescriptor{{Content: "x", Date: day(0)}})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, _, err = svc.CreateMoments(ctx, bucket.ID, userID, nil, []MomentDescriptor{{Content: "no date"}})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCompleteMoment_CascadesToBucket(t *testing.T) {
	store, svc, userID, bucket := newMomentFixture(t)
	ctx := context.Background()

	m1 := store.addMoment(&models.Moment{UserID: userID, BucketID: bucket.ID, StartDate: day(0), EndDate: day(0).Add(time.Hour)})
	m2 := store.addMoment(&models.Moment{UserID: userID, BucketID: bucket.ID, StartDate: day(1), EndDate: day(1).Add(time.Hour)})

	completed := true
	result, err := svc.CompleteMoment(ctx, m1.ID, userID, MomentUpdate{Completed: &completed})
	require.NoError(t, err)
	assert.True(t, result.Moment.IsCompleted)
	assert.NotNil(t, result.Moment.CompletedAt)
	assert.Nil(t, result.Bucket)
	assert.Equal(t, int64(2), result.MomentsCount)
	assert.Equal(t, int64(1), result.CompletedCount)

	// Last completion ends the challenge and frees the slot.
	result, err = svc.CompleteMoment(ctx, m2.ID, userID, MomentUpdate{Completed: &completed})
	require.NoError(t, err)
	require.NotNil(t, result.Bucket)
	assert.True(t, result.Bucket.IsCompleted)
	assert.False(t, result.Bucket.IsChallenging)
	assert.Equal(t, 0, store.users[userID].ActiveChallengeCount)
}

func TestCompleteMoment_PhotoImpliesCompletion(t *testing.T) {
	store, svc, userID, bucket := newMomentFixture(t)
	m := store.addMoment(&models.Moment{UserID: userID, BucketID: bucket.ID, StartDate: day(0), EndDate: day(0).Add(time.Hour)})

	result, err := svc.CompleteMoment(context.Background(), m.ID, userID, MomentUpdate{
		Photo: &PhotoUpload{ContentType: "image/jpeg", Body: nil},
	})
	require.NoError(t, err)
	assert.True(t, result.Moment.IsCompleted)
	assert.Contains(t, result.Moment.PhotoURL, "moments/"+m.ID.Hex())
}

func TestCompleteMoment_CompletionIsMonotonic(t *testing.T) {
	store, svc, userID, bucket := newMomentFixture(t)
	ctx := context.Background()

	m := store.addMoment(&models.Moment{UserID: userID, BucketID: bucket.ID, StartDate: day(0), EndDate: day(1)})
	store.addMoment(&models.Moment{UserID: userID, BucketID: bucket.ID, StartDate: day(1), EndDate: day(2)})

	completed := true
	_, err := svc.CompleteMoment(ctx, m.ID, userID, MomentUpdate{Completed: &completed})
	require.NoError(t, err)

	revert := false
	_, err = svc.CompleteMoment(ctx, m.ID, userID, MomentUpdate{Completed: &revert})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
	assert.True(t, store.moments[m.ID].IsCompleted)
}

func TestCompleteMoment_EndedChallengeRejected(t *testing.T) {
	store, svc, userID, bucket := newMomentFixture(t)

	m := store.addMoment(&models.Moment{UserID: userID, BucketID: bucket.ID, StartDate: day(0), EndDate: day(1)})
	store.buckets[bucket.ID].IsChallenging = false

	completed := true
	_, err := svc.CompleteMoment(context.Background(), m.ID, userID, MomentUpdate{Completed: &completed})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestCompleteMoment_ForeignMomentForbidden(t *testing.T) {
	store, svc, _, bucket := newMomentFixture(t)
	owner := bucket.UserID

	m := store.addMoment(&models.Moment{UserID: owner, BucketID: bucket.ID, StartDate: day(0), EndDate: day(1)})
	stranger := store.addUser(&models.User{Nickname: "ray", Email: "ray@example.com"})

	completed := true
	_, err := svc.CompleteMoment(context.Background(), m.ID, stranger.ID, MomentUpdate{Completed: &completed})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}
