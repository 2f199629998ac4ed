package services

import (
	"context"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store interfaces consumed by the service layer. The repository package
// implements all of them against MongoDB; tests substitute fakes.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByFriendCode(ctx context.Context, code string) (*models.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, update map[string]interface{}) (*models.User, error)
	ReserveChallengeSlot(ctx context.Context, userID primitive.ObjectID) (bool, error)
	ReleaseChallengeSlot(ctx context.Context, userID primitive.ObjectID) (int, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
}

type BucketStore interface {
	CreateBucket(ctx context.Context, bucket *models.Bucket) (*models.Bucket, error)
	GetBucketByID(ctx context.Context, id primitive.ObjectID) (*models.Bucket, error)
	GetBucketsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Bucket, error)
	GetChallengingBucketsByUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]models.Bucket, error)
	UpdateBucketContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Bucket, error)
	SetChallenging(ctx context.Context, id primitive.ObjectID, active bool) (*models.Bucket, bool, error)
	CompleteAchievement(ctx context.Context, id primitive.ObjectID, photoURL string) (*models.Bucket, error)
	CountActiveChallenges(ctx context.Context, userID primitive.ObjectID) (int64, error)
	FindExpiredChallenges(ctx context.Context, now time.Time) ([]models.Bucket, error)
	ExpireChallenge(ctx context.Context, bucketID, ownerID primitive.ObjectID) error
	DeleteBucket(ctx context.Context, bucketID primitive.ObjectID) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type MomentStore interface {
	BulkCreate(ctx context.Context, bucketID primitive.ObjectID, window *models.ChallengeWindow, moments []*models.Moment) (*models.Bucket, []models.Moment, error)
	GetMomentByID(ctx context.Context, id primitive.ObjectID) (*models.Moment, error)
	GetMomentsByBucket(ctx context.Context, bucketID primitive.ObjectID) ([]models.Moment, error)
	CountsByBucket(ctx context.Context, bucketID primitive.ObjectID) (total, completed int64, err error)
	CountsByBuckets(ctx context.Context, bucketIDs []primitive.ObjectID) (map[primitive.ObjectID][2]int64, error)
	CompleteAndReconcile(ctx context.Context, momentID primitive.ObjectID, set bson.M) (*models.Moment, *models.Bucket, int64, int64, error)
	GetMomentsByUserInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]models.Moment, error)
	GetRecentByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Moment, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type FriendStore interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, error)
	GetRequestByID(ctx context.Context, id primitive.ObjectID) (*models.FriendRequest, error)
	FindRequestBetween(ctx context.Context, a, b primitive.ObjectID) (*models.FriendRequest, error)
	GetPendingByReceiver(ctx context.Context, receiverID primitive.ObjectID) ([]models.FriendRequest, error)
	GetPendingByRequester(ctx context.Context, requesterID primitive.ObjectID) ([]models.FriendRequest, error)
	UpdateRequestStatus(ctx context.Context, id primitive.ObjectID, status string) error
	CreateFriendPair(ctx context.Context, a, b primitive.ObjectID) error
	GetFriendLinks(ctx context.Context, userID primitive.ObjectID) ([]models.Friend, error)
	GetFriendLink(ctx context.Context, userID, friendUserID primitive.ObjectID) (*models.Friend, error)
	DeleteFriendPair(ctx context.Context, a, b primitive.ObjectID) error
	SetFixed(ctx context.Context, userID, friendUserID primitive.ObjectID, fixed bool) error
	SetLastKnock(ctx context.Context, userID, friendUserID primitive.ObjectID, at time.Time) error
	CreateCheer(ctx context.Context, senderID, bucketID primitive.ObjectID) (bool, error)
	GetCheeredBuckets(ctx context.Context, senderID primitive.ObjectID, bucketIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, notif *models.Notification) error
	GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAsRead(ctx context.Context, id primitive.ObjectID) error
	DeleteNotification(ctx context.Context, id primitive.ObjectID) error
	DeleteExpiredNotifications(ctx context.Context) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}
