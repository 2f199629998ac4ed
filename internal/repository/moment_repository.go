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

// MomentRepository handles database operations related to moments.
// Completion cascades update the parent bucket and the owner's slot
// counter, so this repository also holds those collections.
type MomentRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	buckets    *mongo.Collection
	users      *mongo.Collection
}

// NewMomentRepository creates a new instance of MomentRepository.
func NewMomentRepository(db *mongo.Database) *MomentRepository {
	return &MomentRepository{
		db:         db,
		collection: db.Collection("moments"),
		buckets:    db.Collection("buckets"),
		users:      db.Collection("users"),
	}
}

// BulkCreate seeds a challenge calendar: all moments and the bucket's
// window update commit together, or none do.
func (r *MomentRepository) BulkCreate(ctx context.Context, bucketID primitive.ObjectID, window *models.ChallengeWindow, moments []*models.Moment) (*models.Bucket, []models.Moment, error) {
	now := time.Now()
	docs := make([]interface{}, 0, len(moments))
	for _, m := range moments {
		m.BucketID = bucketID
		m.CreatedAt = now
		m.UpdatedAt = now
		docs = append(docs, m)
	}

	var bucket models.Bucket
	err := withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		result, err := r.collection.InsertMany(sc, docs)
		if err != nil {
			return err
		}
		for i, id := range result.InsertedIDs {
			if oid, ok := id.(primitive.ObjectID); ok {
				moments[i].ID = oid
			}
		}

		set := bson.M{"updated_at": now}
		if window != nil {
			set["start_date"] = window.StartDate
			set["end_date"] = window.EndDate
			if window.Frequency != "" {
				set["frequency"] = window.Frequency
			}
		}

		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return r.buckets.FindOneAndUpdate(sc, bson.M{"_id": bucketID}, bson.M{"$set": set}, opts).Decode(&bucket)
	})
	if err != nil {
		logger.Log.WithError(err).WithField("bucket_id", bucketID.Hex()).Error("Failed to bulk create moments")
		return nil, nil, err
	}

	created := make([]models.Moment, 0, len(moments))
	for _, m := range moments {
		created = append(created, *m)
	}

	logger.Log.WithFields(map[string]interface{}{
		"bucket_id": bucketID.Hex(),
		"count":     len(created),
	}).Info("Moments created successfully")
	return &bucket, created, nil
}

// GetMomentByID fetches a moment by its ID.
func (r *MomentRepository) GetMomentByID(ctx context.Context, id primitive.ObjectID) (*models.Moment, error) {
	var moment models.Moment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&moment); err != nil {
		return nil, err
	}
	return &moment, nil
}

// GetMomentsByBucket fetches a bucket's moments ordered by day.
func (r *MomentRepository) GetMomentsByBucket(ctx context.Context, bucketID primitive.ObjectID) ([]models.Moment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"bucket_id": bucketID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var moments []models.Moment
	if err := cursor.All(ctx, &moments); err != nil {
		return nil, err
	}
	return moments, nil
}

// CountsByBucket returns the total and completed moment counts of a bucket.
func (r *MomentRepository) CountsByBucket(ctx context.Context, bucketID primitive.ObjectID) (total, completed int64, err error) {
	total, err = r.collection.CountDocuments(ctx, bson.M{"bucket_id": bucketID})
	if err != nil {
		return 0, 0, err
	}
	completed, err = r.collection.CountDocuments(ctx, bson.M{"bucket_id": bucketID, "is_completed": true})
	if err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

// CompleteAndReconcile applies a moment update and recomputes the parent
// bucket's aggregate inside one transaction. When the last moment
// completes, the bucket flips to completed, the challenge ends early and
// the owner's slot is released. The returned bucket is nil unless the
// aggregate flipped it.
func (r *MomentRepository) CompleteAndReconcile(ctx context.Context, momentID primitive.ObjectID, set bson.M) (*models.Moment, *models.Bucket, int64, int64, error) {
	var (
		moment    models.Moment
		bucket    *models.Bucket
		total     int64
		completed int64
	)

	err := withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		set["updated_at"] = time.Now()
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		if err := r.collection.FindOneAndUpdate(sc, bson.M{"_id": momentID}, bson.M{"$set": set}, opts).Decode(&moment); err != nil {
			return err
		}

		var err error
		total, err = r.collection.CountDocuments(sc, bson.M{"bucket_id": moment.BucketID})
		if err != nil {
			return err
		}
		completed, err = r.collection.CountDocuments(sc, bson.M{"bucket_id": moment.BucketID, "is_completed": true})
		if err != nil {
			return err
		}

		if total == 0 || total != completed {
			return nil
		}

		// Every moment is done: complete the bucket and end the
		// challenge without waiting for the window to expire.
		res, err := r.buckets.UpdateOne(sc,
			bson.M{"_id": moment.BucketID, "is_challenging": true},
			bson.M{"$set": bson.M{"is_challenging": false}},
		)
		if err != nil {
			return err
		}

		upOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var updated models.Bucket
		if err := r.buckets.FindOneAndUpdate(sc,
			bson.M{"_id": moment.BucketID},
			bson.M{"$set": bson.M{"is_completed": true, "updated_at": time.Now()}},
			upOpts,
		).Decode(&updated); err != nil {
			return err
		}
		bucket = &updated

		if res.ModifiedCount == 1 {
			_, err = r.users.UpdateOne(sc,
				bson.M{"_id": moment.UserID, "active_challenge_count": bson.M{"$gt": 0}},
				bson.M{"$inc": bson.M{"active_challenge_count": -1}},
			)
			return err
		}
		return nil
	})
	if err != nil {
		logger.Log.WithError(err).WithField("moment_id", momentID.Hex()).Error("Failed to complete moment")
		return nil, nil, 0, 0, err
	}

	return &moment, bucket, total, completed, nil
}

// GetMomentsByUserInRange fetches the user's moments whose validity
// window intersects [from, to).
func (r *MomentRepository) GetMomentsByUserInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]models.Moment, error) {
	filter := bson.M{
		"user_id":    userID,
		"start_date": bson.M{"$lt": to},
		"end_date":   bson.M{"$gte": from},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var moments []models.Moment
	if err := cursor.All(ctx, &moments); err != nil {
		return nil, err
	}
	return moments, nil
}

// GetRecentByUser fetches the user's most recent moments for the home view.
func (r *MomentRepository) GetRecentByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Moment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var moments []models.Moment
	if err := cursor.All(ctx, &moments); err != nil {
		return nil, err
	}
	return moments, nil
}

// CountsByBuckets returns per-bucket total/completed counts for the feed.
func (r *MomentRepository) CountsByBuckets(ctx context.Context, bucketIDs []primitive.ObjectID) (map[primitive.ObjectID][2]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"bucket_id": bson.M{"$in": bucketIDs}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$bucket_id",
			"total": bson.M{"$sum": 1},
			"completed": bson.M{"$sum": bson.M{
				"$cond": bson.A{"$is_completed", 1, 0},
			}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[primitive.ObjectID][2]int64)
	for cursor.Next(ctx) {
		var row struct {
			ID        primitive.ObjectID `bson:"_id"`
			Total     int64              `bson:"total"`
			Completed int64              `bson:"completed"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.ID] = [2]int64{row.Total, row.Completed}
	}
	return counts, nil
}

// DeleteByUser removes all moments of a user (account deletion cascade).
func (r *MomentRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}
