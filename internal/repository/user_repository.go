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

// UserRepository handles database operations related to users.
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert user")
		return nil, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		logger.Log.Error("Failed to cast inserted user ID")
		return nil, mongo.ErrNilDocument
	}
	user.ID = insertedID

	logger.Log.WithField("user_id", user.ID.Hex()).Info("User created successfully")
	return user, nil
}

// GetUserByID fetches a user by ID.
func (r *UserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail fetches a user by email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByFriendCode fetches a user by their unique friend code.
func (r *UserRepository) GetUserByFriendCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"friend_code": code}).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByVerificationToken fetches a user by their signup token.
func (r *UserRepository) GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"verify_token": token}).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUsersByIDs fetches multiple users at once.
func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser applies a partial update and returns the fresh document.
func (r *UserRepository) UpdateUser(ctx context.Context, id primitive.ObjectID, update map[string]interface{}) (*models.User, error) {
	update["updated_at"] = time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": update}, opts).Decode(&user); err != nil {
		logger.Log.WithError(err).WithField("user_id", id.Hex()).Error("Failed to update user")
		return nil, err
	}
	return &user, nil
}

// ReserveChallengeSlot atomically claims one of the user's challenge
// slots. The guard on the counter closes the count-then-set race: two
// concurrent activations cannot both pass a separate quota read.
func (r *UserRepository) ReserveChallengeSlot(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID, "active_challenge_count": bson.M{"$lt": models.MaxActiveChallenges}},
		bson.M{"$inc": bson.M{"active_challenge_count": 1}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ReleaseChallengeSlot returns a slot to the user and reports the new
// active count.
func (r *UserRepository) ReleaseChallengeSlot(ctx context.Context, userID primitive.ObjectID) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": userID, "active_challenge_count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"active_challenge_count": -1}, "$set": bson.M{"updated_at": time.Now()}},
		opts,
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		// Counter already at zero; nothing to release.
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return user.ActiveChallengeCount, nil
}

// DeleteUser removes the user document itself. Owned buckets, moments,
// friend links and notifications are cascaded by the service layer.
func (r *UserRepository) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", id.Hex()).Error("Failed to delete user")
		return err
	}
	return nil
}
