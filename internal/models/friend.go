package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Friend request lifecycle states.
const (
	RequestStatusPending  = "PENDING"
	RequestStatusAccepted = "ACCEPTED"
	RequestStatusRejected = "REJECTED"
	RequestStatusDeleted  = "DELETED"
)

// FriendRequest tracks the PENDING → ACCEPTED|REJECTED|DELETED flow.
type FriendRequest struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequesterID primitive.ObjectID `bson:"requester_id" json:"requester_id"`
	ReceiverID  primitive.ObjectID `bson:"receiver_id" json:"receiver_id"`
	Status      string             `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// Friend is one direction of an accepted friendship. Accepting a request
// creates a pair of these, one per direction.
type Friend struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"user_id" json:"user_id"`
	FriendUserID primitive.ObjectID `bson:"friend_user_id" json:"friend_user_id"`
	IsFixed      bool               `bson:"is_fixed" json:"is_fixed"`
	FixedAt      *time.Time         `bson:"fixed_at,omitempty" json:"fixed_at,omitempty"`
	LastKnockAt  *time.Time         `bson:"last_knock_at,omitempty" json:"last_knock_at,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// Cheer marks a friend's one-time encouragement on a bucket.
type Cheer struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID  primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	BucketID  primitive.ObjectID `bson:"bucket_id" json:"bucket_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
