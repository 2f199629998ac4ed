package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Moment is one day's check-in under a repeat bucket. StartDate/EndDate
// bound the calendar day the check-in covers.
type Moment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	BucketID    primitive.ObjectID `bson:"bucket_id" json:"bucket_id"`
	Content     string             `bson:"content" json:"content"`
	PhotoURL    string             `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	IsCompleted bool               `bson:"is_completed" json:"is_completed"`
	CompletedAt *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	StartDate   time.Time          `bson:"start_date" json:"start_date"`
	EndDate     time.Time          `bson:"end_date" json:"end_date"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
