package services

import (
	"context"
	"fmt"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// FeedService assembles the friends feed: every friend's active
// challenges with progress counts, plus the one-time cheer.
type FeedService struct {
	friends       FriendStore
	buckets       BucketStore
	moments       MomentStore
	users         UserStore
	notifications *NotificationService
}

// NewFeedService creates a new instance of FeedService.
func NewFeedService(friends FriendStore, buckets BucketStore, moments MomentStore, users UserStore, notifications *NotificationService) *FeedService {
	return &FeedService{
		friends:       friends,
		buckets:       buckets,
		moments:       moments,
		users:         users,
		notifications: notifications,
	}
}

// FeedBucket is one active challenge on the feed with its progress.
type FeedBucket struct {
	Bucket         *models.Bucket `json:"bucket"`
	MomentsCount   int64          `json:"moments_count"`
	CompletedCount int64          `json:"completed_moments_count"`
	Cheered        bool           `json:"cheered"`
}

// FeedEntry groups one friend's active challenges.
type FeedEntry struct {
	User    *models.PublicUser `json:"user"`
	IsFixed bool               `json:"is_fixed"`
	Buckets []FeedBucket       `json:"buckets"`
}

// GetFeed returns the caller's friends with their active challenges,
// progress counts and whether the caller already cheered each one.
// Fixed friends come first.
func (s *FeedService) GetFeed(ctx context.Context, userID primitive.ObjectID) ([]FeedEntry, error) {
	links, err := s.friends.GetFriendLinks(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch friends", err)
	}
	if len(links) == 0 {
		return []FeedEntry{}, nil
	}

	friendIDs := make([]primitive.ObjectID, 0, len(links))
	fixed := make(map[primitive.ObjectID]bool, len(links))
	for _, l := range links {
		friendIDs = append(friendIDs, l.FriendUserID)
		fixed[l.FriendUserID] = l.IsFixed
	}

	users, err := s.users.GetUsersByIDs(ctx, friendIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch friend profiles", err)
	}

	buckets, err := s.buckets.GetChallengingBucketsByUsers(ctx, friendIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch active challenges", err)
	}

	bucketIDs := make([]primitive.ObjectID, 0, len(buckets))
	for _, b := range buckets {
		bucketIDs = append(bucketIDs, b.ID)
	}

	counts := map[primitive.ObjectID][2]int64{}
	cheered := map[primitive.ObjectID]bool{}
	if len(bucketIDs) > 0 {
		if counts, err = s.moments.CountsByBuckets(ctx, bucketIDs); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to count moments", err)
		}
		if cheered, err = s.friends.GetCheeredBuckets(ctx, userID, bucketIDs); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch cheers", err)
		}
	}

	byOwner := make(map[primitive.ObjectID][]FeedBucket, len(users))
	for i := range buckets {
		b := buckets[i]
		c := counts[b.ID]
		byOwner[b.UserID] = append(byOwner[b.UserID], FeedBucket{
			Bucket:         &b,
			MomentsCount:   c[0],
			CompletedCount: c[1],
			Cheered:        cheered[b.ID],
		})
	}

	entries := make([]FeedEntry, 0, len(users))
	for i := range users {
		u := users[i]
		pub := u.Public()
		entries = append(entries, FeedEntry{
			User:    &pub,
			IsFixed: fixed[u.ID],
			Buckets: byOwner[u.ID],
		})
	}

	// Fixed friends float to the top, otherwise keep the fetch order.
	for i, j := 0, 0; i < len(entries); i++ {
		if entries[i].IsFixed {
			entries[i], entries[j] = entries[j], entries[i]
			j++
		}
	}
	return entries, nil
}

// CheerBucket records a one-time cheer on a friend's bucket and
// notifies the owner. Cheering twice is a conflict.
func (s *FeedService) CheerBucket(ctx context.Context, userID, bucketID primitive.ObjectID) error {
	bucket, err := s.buckets.GetBucketByID(ctx, bucketID)
	if err == mongo.ErrNoDocuments {
		return apperr.New(apperr.KindNotFound, "bucket not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to fetch bucket", err)
	}
	if bucket.UserID == userID {
		return apperr.New(apperr.KindValidation, "you cannot cheer your own bucket")
	}

	link, err := s.friends.GetFriendLink(ctx, userID, bucket.UserID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to fetch friendship", err)
	}
	if link == nil {
		return apperr.New(apperr.KindForbidden, "you can only cheer a friend's bucket")
	}

	created, err := s.friends.CreateCheer(ctx, userID, bucketID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to record cheer", err)
	}
	if !created {
		return apperr.New(apperr.KindConflict, "you have already cheered this bucket")
	}

	sender, err := s.users.GetUserByID(ctx, userID)
	if err == nil {
		message := fmt.Sprintf("%s cheered your challenge %q", sender.Nickname, bucket.Content)
		if err := s.notifications.CreateNotification(ctx, bucket.UserID, "cheer", "New Cheer", message, &bucketID); err != nil {
			logger.Log.WithError(err).WithField("user_id", bucket.UserID.Hex()).Warn("Failed to create notification")
		}
	}

	logger.Log.WithField("bucket_id", bucketID.Hex()).Info("Cheer recorded")
	return nil
}
