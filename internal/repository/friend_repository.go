package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FriendRepository handles friend requests, friendship links and cheers.
type FriendRepository struct {
	db       *mongo.Database
	requests *mongo.Collection
	friends  *mongo.Collection
	cheers   *mongo.Collection
}

func NewFriendRepository(db *mongo.Database) *FriendRepository {
	return &FriendRepository{
		db:       db,
		requests: db.Collection("friend_requests"),
		friends:  db.Collection("friends"),
		cheers:   db.Collection("cheers"),
	}
}

func (r *FriendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, error) {
	req.CreatedAt = time.Now()
	req.Status = models.RequestStatusPending

	result, err := r.requests.InsertOne(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to send friend request: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	req.ID = insertedID

	return req, nil
}

func (r *FriendRepository) GetRequestByID(ctx context.Context, id primitive.ObjectID) (*models.FriendRequest, error) {
	var request models.FriendRequest
	if err := r.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&request); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindRequestBetween returns the latest request in either direction
// between two users, regardless of status.
func (r *FriendRepository) FindRequestBetween(ctx context.Context, a, b primitive.ObjectID) (*models.FriendRequest, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"requester_id": a, "receiver_id": b},
			{"requester_id": b, "receiver_id": a},
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var request models.FriendRequest
	err := r.requests.FindOne(ctx, filter, opts).Decode(&request)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *FriendRepository) GetPendingByReceiver(ctx context.Context, receiverID primitive.ObjectID) ([]models.FriendRequest, error) {
	return r.findRequests(ctx, bson.M{"receiver_id": receiverID, "status": models.RequestStatusPending})
}

func (r *FriendRepository) GetPendingByRequester(ctx context.Context, requesterID primitive.ObjectID) ([]models.FriendRequest, error) {
	return r.findRequests(ctx, bson.M{"requester_id": requesterID, "status": models.RequestStatusPending})
}

func (r *FriendRepository) findRequests(ctx context.Context, filter bson.M) ([]models.FriendRequest, error) {
	cursor, err := r.requests.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find friend requests: %v", err)
	}
	defer cursor.Close(ctx)

	var requests []models.FriendRequest
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *FriendRepository) UpdateRequestStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := r.requests.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("failed to update request status: %v", err)
	}
	return nil
}

// CreateFriendPair inserts both directions of an accepted friendship.
func (r *FriendRepository) CreateFriendPair(ctx context.Context, a, b primitive.ObjectID) error {
	now := time.Now()
	return withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		_, err := r.friends.InsertMany(sc, []interface{}{
			&models.Friend{UserID: a, FriendUserID: b, CreatedAt: now},
			&models.Friend{UserID: b, FriendUserID: a, CreatedAt: now},
		})
		return err
	})
}

// GetFriendLinks returns the user's side of every friendship.
func (r *FriendRepository) GetFriendLinks(ctx context.Context, userID primitive.ObjectID) ([]models.Friend, error) {
	cursor, err := r.friends.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve friends: %v", err)
	}
	defer cursor.Close(ctx)

	var links []models.Friend
	if err := cursor.All(ctx, &links); err != nil {
		return nil, err
	}
	return links, nil
}

// GetFriendLink returns the (user, friend) link, or nil if they are not
// friends.
func (r *FriendRepository) GetFriendLink(ctx context.Context, userID, friendUserID primitive.ObjectID) (*models.Friend, error) {
	var link models.Friend
	err := r.friends.FindOne(ctx, bson.M{"user_id": userID, "friend_user_id": friendUserID}).Decode(&link)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// DeleteFriendPair removes both directions of a friendship and marks any
// request between the pair as deleted.
func (r *FriendRepository) DeleteFriendPair(ctx context.Context, a, b primitive.ObjectID) error {
	return withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		_, err := r.friends.DeleteMany(sc, bson.M{
			"$or": []bson.M{
				{"user_id": a, "friend_user_id": b},
				{"user_id": b, "friend_user_id": a},
			},
		})
		if err != nil {
			return err
		}

		_, err = r.requests.UpdateMany(sc, bson.M{
			"$or": []bson.M{
				{"requester_id": a, "receiver_id": b},
				{"requester_id": b, "receiver_id": a},
			},
		}, bson.M{"$set": bson.M{"status": models.RequestStatusDeleted}})
		return err
	})
}

// SetFixed pins or unpins a friend on the caller's list.
func (r *FriendRepository) SetFixed(ctx context.Context, userID, friendUserID primitive.ObjectID, fixed bool) error {
	set := bson.M{"is_fixed": fixed}
	if fixed {
		set["fixed_at"] = time.Now()
	}
	res, err := r.friends.UpdateOne(ctx,
		bson.M{"user_id": userID, "friend_user_id": friendUserID},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SetLastKnock records when the user last knocked this friend.
func (r *FriendRepository) SetLastKnock(ctx context.Context, userID, friendUserID primitive.ObjectID, at time.Time) error {
	_, err := r.friends.UpdateOne(ctx,
		bson.M{"user_id": userID, "friend_user_id": friendUserID},
		bson.M{"$set": bson.M{"last_knock_at": at}},
	)
	return err
}

// CreateCheer records a cheer once per (sender, bucket). Returns false
// when the sender already cheered this bucket.
func (r *FriendRepository) CreateCheer(ctx context.Context, senderID, bucketID primitive.ObjectID) (bool, error) {
	res, err := r.cheers.UpdateOne(ctx,
		bson.M{"sender_id": senderID, "bucket_id": bucketID},
		bson.M{"$setOnInsert": bson.M{"created_at": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

// GetCheeredBuckets returns which of the given buckets the sender has
// cheered.
func (r *FriendRepository) GetCheeredBuckets(ctx context.Context, senderID primitive.ObjectID, bucketIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	cursor, err := r.cheers.Find(ctx, bson.M{
		"sender_id": senderID,
		"bucket_id": bson.M{"$in": bucketIDs},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	cheered := make(map[primitive.ObjectID]bool)
	for cursor.Next(ctx) {
		var cheer models.Cheer
		if err := cursor.Decode(&cheer); err != nil {
			return nil, err
		}
		cheered[cheer.BucketID] = true
	}
	return cheered, nil
}

// DeleteByUser removes all friendship data of a user (account deletion).
func (r *FriendRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	return withTransaction(ctx, r.db, func(sc mongo.SessionContext) error {
		if _, err := r.friends.DeleteMany(sc, bson.M{
			"$or": []bson.M{{"user_id": userID}, {"friend_user_id": userID}},
		}); err != nil {
			return err
		}
		if _, err := r.requests.DeleteMany(sc, bson.M{
			"$or": []bson.M{{"requester_id": userID}, {"receiver_id": userID}},
		}); err != nil {
			return err
		}
		_, err := r.cheers.DeleteMany(sc, bson.M{"sender_id": userID})
		return err
	})
}
