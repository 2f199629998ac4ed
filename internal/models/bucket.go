package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bucket types. An achievement completes through a single photo
// verification; a repeat bucket completes when all of its moments do.
const (
	BucketTypeAchievement = "ACHIEVEMENT"
	BucketTypeRepeat      = "REPEAT"
)

// MaxActiveChallenges caps how many repeat buckets a user can be
// challenging at the same time.
const MaxActiveChallenges = 3

// Bucket is a user-defined goal.
type Bucket struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	Type          string             `bson:"type" json:"type"`
	Content       string             `bson:"content" json:"content"`
	IsCompleted   bool               `bson:"is_completed" json:"is_completed"`
	IsChallenging bool               `bson:"is_challenging" json:"is_challenging"`
	StartDate     *time.Time         `bson:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate       *time.Time         `bson:"end_date,omitempty" json:"end_date,omitempty"`
	Frequency     string             `bson:"frequency,omitempty" json:"frequency,omitempty"`
	PhotoURL      string             `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// ChallengeWindow is the caller-supplied challenge period applied to a
// bucket when its moment calendar is seeded.
type ChallengeWindow struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Frequency string    `json:"frequency,omitempty"`
}
