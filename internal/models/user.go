package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account in Momentum.
type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Nickname             string             `bson:"nickname" json:"nickname"`
	Email                string             `bson:"email" json:"email"`
	HashedPassword       string             `bson:"hashed_password" json:"-"`
	FriendCode           string             `bson:"friend_code" json:"friend_code"`
	ProfileImageURL      string             `bson:"profile_image_url,omitempty" json:"profile_image_url,omitempty"`
	ActiveChallengeCount int                `bson:"active_challenge_count" json:"active_challenge_count"`
	IsVerified           bool               `bson:"is_verified" json:"is_verified"`
	VerifyToken          string             `bson:"verify_token,omitempty" json:"-"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updated_at"`
}

// PublicUser is the profile shape exposed to other users.
type PublicUser struct {
	ID              primitive.ObjectID `json:"id"`
	Nickname        string             `json:"nickname"`
	ProfileImageURL string             `json:"profile_image_url,omitempty"`
	FriendCode      string             `json:"friend_code,omitempty"`
}

// Public strips the account down to what other users may see.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Nickname:        u.Nickname,
		ProfileImageURL: u.ProfileImageURL,
		FriendCode:      u.FriendCode,
	}
}
