package repository

import (
	"context"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BucketRepository handles database operations related to buckets. It
// holds the database handle because challenge expiry and deletion touch
// the moments and users collections in the same transaction.
type BucketRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	moments    *mongo.Collection
	users      *mongo.Collection
}

// NewBucketRepository creates a new instance of BucketRepository.
func NewBucketRepository(db *mongo.Database) *BucketRepository {
	return &BucketRepository{
		db:         db,
		collection: db.Collection("buckets"),
		moments:    db.Collection("moments"),
		users:      db.Collection("users"),
	}
}

// CreateBucket inserts a new bucket.
func (r *BucketRepository) CreateBucket(ctx context.Context, bucket *models.Bucket) (*models.Bucket, error) {
	bucket.CreatedAt = time.Now()
	bucket.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, bucket)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert bucket")
		return nil, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		logger.Log.Error("Failed to cast inserted bucket ID")
		return nil, mongo.ErrNilDocument
	}
	bucket.ID = insertedID

	logger.Log.WithField("bucket_id", bucket.ID.Hex()).Info("Bucket created successfully")
	return bucket, nil
}

// GetBucketByID fetches a bucket by its ID.
func (r *BucketRepository) GetBucketByID(ctx context.Context, id primitive.ObjectID) (*models.Bucket, error) {
	var bucket models.Bucket
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&bucket)
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}

// GetBucketsByUser fetches all buckets owned by a user, newest first.
func (r *BucketRepository) GetBucketsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Bucket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID.Hex()).Error("Failed to fetch buckets")
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []models.Bucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// GetChallengingBucketsByUsers fetches the active repeat buckets of the
// given owners, for the friend feed.
func (r *BucketRepository) GetChallengingBucketsByUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]models.Bucket, error) {
	filter := bson.M{
		"user_id":        bson.M{"$in": userIDs},
		"type":           models.BucketTypeRepeat,
		"is_challenging": true,
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []models.Bucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// UpdateBucketContent updates the free-text content of a bucket.
func (r *BucketRepository) UpdateBucketContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Bucket, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"content": content, "updated_at": time.Now()}}

	var bucket models.Bucket
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&bucket); err != nil {
		logger.Log.WithError(err).WithField("bucket_id", id.Hex()).Error("Failed to update bucket")
		return nil, err
	}
	return &bucket, nil
}

// SetChallenging flips the challenge flag. The update is conditional on
// the current flag so concurrent requests cannot double-flip: the second
// caller sees flipped=false.
func (r *BucketRepository) SetChallenging(ctx context.Context, id primitive.ObjectID, active bool) (*models.Bucket, bool, error) {
	filter := bson.M{"_id": id, "is_challenging": !active}
	update := bson.M{"$set": bson.M{"is_challenging": active, "updated_at": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var bucket models.Bucket
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&bucket)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &bucket, true, nil
}

// CompleteAchievement marks an achievement bucket completed with its
// verification photo.
func (r *BucketRepository) CompleteAchievement(ctx context.Context, id primitive.ObjectID, photoURL string) (*models.Bucket, error) {
	update := bson.M{"$set": bson.M{
		"is_completed": true,
		"photo_url":    photoURL,
		"updated_at":   time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var bucket models.Bucket
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&bucket); err != nil {
		return nil, err
	}

	logger.Log.WithField("bucket_id", id.Hex()).Info("Achievement bucket completed")
	return &bucket, nil
}

// CountActiveChallenges counts the user's repeat buckets currently in the
// challenging state.
func (r *BucketRepository) CountActiveChallenges(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"user_id":        userID,
		"type":           models.BucketTypeRepeat,
		"is_challenging": true,
	})
}

// FindExpiredChallenges returns active challenges whose window has lapsed.
func (r *BucketRepository) FindExpiredChallenges(ctx context.Context, now time.Time) ([]models.Bucket, error) {
	filter := bson.M{
		"is_challenging": true,
		"end_date":       bson.M{"$lt": now},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var buckets []models.Bucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// ExpireChallenge discards a lapsed challenge: its unfinished moments
// are hard-deleted, the flag is forced off and the owner's slot is
// released. Completed check-ins stay so streak history survives. Runs
// as one transaction so no reader sees a half-expired challenge.
func (r *BucketRepository) ExpireChallenge(ctx context.Context, bucketID, ownerID primitive.ObjectID) error {
	err := withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		if _, err := r.moments.DeleteMany(sc, bson.M{"bucket_id": bucketID, "is_completed": false}); err != nil {
			return err
		}

		res, err := r.collection.UpdateOne(sc,
			bson.M{"_id": bucketID, "is_challenging": true},
			bson.M{"$set": bson.M{"is_challenging": false, "updated_at": time.Now()}},
		)
		if err != nil {
			return err
		}

		if res.ModifiedCount == 1 {
			_, err = r.users.UpdateOne(sc,
				bson.M{"_id": ownerID, "active_challenge_count": bson.M{"$gt": 0}},
				bson.M{"$inc": bson.M{"active_challenge_count": -1}},
			)
			return err
		}
		return nil
	})
	if err != nil {
		logger.Log.WithError(err).WithField("bucket_id", bucketID.Hex()).Error("Failed to expire challenge")
		return err
	}

	logger.Log.WithField("bucket_id", bucketID.Hex()).Info("Expired challenge reconciled")
	return nil
}

// DeleteBucket removes a bucket and its moments. Deleting an active
// challenge also releases the owner's slot.
func (r *BucketRepository) DeleteBucket(ctx context.Context, bucketID primitive.ObjectID) error {
	return withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		var bucket models.Bucket
		if err := r.collection.FindOneAndDelete(sc, bson.M{"_id": bucketID}).Decode(&bucket); err != nil {
			return err
		}

		if _, err := r.moments.DeleteMany(sc, bson.M{"bucket_id": bucketID}); err != nil {
			return err
		}

		if bucket.IsChallenging {
			_, err := r.users.UpdateOne(sc,
				bson.M{"_id": bucket.UserID, "active_challenge_count": bson.M{"$gt": 0}},
				bson.M{"$inc": bson.M{"active_challenge_count": -1}},
			)
			return err
		}
		return nil
	})
}

// DeleteByUser removes all buckets of a user (account deletion cascade).
func (r *BucketRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}
