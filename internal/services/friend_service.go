package services

import (
	"context"
	"fmt"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/internal/ratelimit"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// FriendService manages the friendship graph: requests by friend code,
// the accept flow, fixing friends to the home screen and weekly knocks.
type FriendService struct {
	friends       FriendStore
	users         UserStore
	notifications *NotificationService
	knocks        ratelimit.KnockLimiter
}

// NewFriendService creates a new instance of FriendService.
func NewFriendService(friends FriendStore, users UserStore, notifications *NotificationService, knocks ratelimit.KnockLimiter) *FriendService {
	return &FriendService{
		friends:       friends,
		users:         users,
		notifications: notifications,
		knocks:        knocks,
	}
}

// FriendRequestView pairs a pending request with the other party's
// public profile.
type FriendRequestView struct {
	Request *models.FriendRequest `json:"request"`
	User    *models.PublicUser    `json:"user"`
}

// FriendView is one friend on the list with the link metadata.
type FriendView struct {
	User        *models.PublicUser `json:"user"`
	IsFixed     bool               `json:"is_fixed"`
	FixedAt     *time.Time         `json:"fixed_at,omitempty"`
	LastKnockAt *time.Time         `json:"last_knock_at,omitempty"`
}

// SendRequest creates a friend request addressed by friend code.
func (s *FriendService) SendRequest(ctx context.Context, requesterID primitive.ObjectID, friendCode string) (*models.FriendRequest, error) {
	if friendCode == "" {
		return nil, apperr.New(apperr.KindValidation, "friend code is required")
	}

	receiver, err := s.users.GetUserByFriendCode(ctx, friendCode)
	if err == mongo.ErrNoDocuments || receiver == nil {
		return nil, apperr.New(apperr.KindNotFound, "no user with that friend code")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to look up friend code", err)
	}
	if receiver.ID == requesterID {
		return nil, apperr.New(apperr.KindValidation, "you cannot add yourself as a friend")
	}

	existing, err := s.friends.FindRequestBetween(ctx, requesterID, receiver.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to check existing requests", err)
	}
	if existing != nil {
		switch existing.Status {
		case models.RequestStatusPending:
			return nil, apperr.New(apperr.KindConflict, "a friend request is already pending")
		case models.RequestStatusAccepted:
			return nil, apperr.New(apperr.KindConflict, "you are already friends")
		}
	}

	request := &models.FriendRequest{
		RequesterID: requesterID,
		ReceiverID:  receiver.ID,
		Status:      models.RequestStatusPending,
	}
	created, err := s.friends.CreateRequest(ctx, request)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create friend request", err)
	}

	requester, err := s.users.GetUserByID(ctx, requesterID)
	if err == nil {
		s.notify(ctx, receiver.ID, "friend_request", "New Friend Request",
			fmt.Sprintf("%s wants to be your friend", requester.Nickname), &created.ID)
	}

	logger.Log.WithFields(logrus.Fields{
		"requester_id": requesterID.Hex(),
		"receiver_id":  receiver.ID.Hex(),
	}).Info("Friend request sent")
	return created, nil
}

// GetRequests lists the user's pending requests, sent and received, with
// the other party's public profile attached.
func (s *FriendService) GetRequests(ctx context.Context, userID primitive.ObjectID) (received, sent []FriendRequestView, err error) {
	in, err := s.friends.GetPendingByReceiver(ctx, userID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "failed to fetch friend requests", err)
	}
	out, err := s.friends.GetPendingByRequester(ctx, userID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "failed to fetch friend requests", err)
	}

	ids := make([]primitive.ObjectID, 0, len(in)+len(out))
	for _, r := range in {
		ids = append(ids, r.RequesterID)
	}
	for _, r := range out {
		ids = append(ids, r.ReceiverID)
	}
	profiles, err := s.publicProfiles(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	received = make([]FriendRequestView, 0, len(in))
	for i := range in {
		r := in[i]
		received = append(received, FriendRequestView{Request: &r, User: profiles[r.RequesterID]})
	}
	sent = make([]FriendRequestView, 0, len(out))
	for i := range out {
		r := out[i]
		sent = append(sent, FriendRequestView{Request: &r, User: profiles[r.ReceiverID]})
	}
	return received, sent, nil
}

// RespondToRequest accepts or rejects a pending request. Only the
// receiver may respond; accepting creates the friendship both ways.
func (s *FriendService) RespondToRequest(ctx context.Context, requestID, userID primitive.ObjectID, accept bool) error {
	request, err := s.friends.GetRequestByID(ctx, requestID)
	if err == mongo.ErrNoDocuments {
		return apperr.New(apperr.KindNotFound, "friend request not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to fetch friend request", err)
	}
	if request.ReceiverID != userID {
		return apperr.New(apperr.KindForbidden, "only the receiver can respond to a request")
	}
	if request.Status != models.RequestStatusPending {
		return apperr.New(apperr.KindInvalidState, "request has already been handled")
	}

	if !accept {
		if err := s.friends.UpdateRequestStatus(ctx, requestID, models.RequestStatusRejected); err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to reject friend request", err)
		}
		return nil
	}

	if err := s.friends.UpdateRequestStatus(ctx, requestID, models.RequestStatusAccepted); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to accept friend request", err)
	}
	if err := s.friends.CreateFriendPair(ctx, request.RequesterID, request.ReceiverID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to create friendship", err)
	}

	receiver, err := s.users.GetUserByID(ctx, userID)
	if err == nil {
		s.notify(ctx, request.RequesterID, "friend_accepted", "Friend Request Accepted",
			fmt.Sprintf("%s accepted your friend request", receiver.Nickname), &request.ReceiverID)
	}

	logger.Log.WithField("request_id", requestID.Hex()).Info("Friend request accepted")
	return nil
}

// GetFriends lists the user's friends with fix and knock metadata.
func (s *FriendService) GetFriends(ctx context.Context, userID primitive.ObjectID) ([]FriendView, error) {
	links, err := s.friends.GetFriendLinks(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch friends", err)
	}

	ids := make([]primitive.ObjectID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.FriendUserID)
	}
	profiles, err := s.publicProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]FriendView, 0, len(links))
	for _, l := range links {
		profile := profiles[l.FriendUserID]
		if profile == nil {
			continue // friend account deleted, link is stale
		}
		views = append(views, FriendView{
			User:        profile,
			IsFixed:     l.IsFixed,
			FixedAt:     l.FixedAt,
			LastKnockAt: l.LastKnockAt,
		})
	}
	return views, nil
}

// RemoveFriend deletes the friendship in both directions.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendUserID primitive.ObjectID) error {
	link, err := s.friends.GetFriendLink(ctx, userID, friendUserID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to fetch friendship", err)
	}
	if link == nil {
		return apperr.New(apperr.KindNotFound, "friendship not found")
	}

	if err := s.friends.DeleteFriendPair(ctx, userID, friendUserID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to remove friend", err)
	}
	logger.Log.WithFields(logrus.Fields{
		"user_id":   userID.Hex(),
		"friend_id": friendUserID.Hex(),
	}).Info("Friendship removed")
	return nil
}

// FixFriend pins or unpins a friend on the caller's home screen. The
// pin is one-directional.
func (s *FriendService) FixFriend(ctx context.Context, userID, friendUserID primitive.ObjectID, fixed bool) error {
	err := s.friends.SetFixed(ctx, userID, friendUserID, fixed)
	if err == mongo.ErrNoDocuments {
		return apperr.New(apperr.KindNotFound, "friendship not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to update friend pin", err)
	}
	return nil
}

// Knock nudges a friend. Each friend may be knocked at most once per
// ISO week; the claim is atomic so concurrent knocks cannot double up.
func (s *FriendService) Knock(ctx context.Context, userID, friendUserID primitive.ObjectID) error {
	link, err := s.friends.GetFriendLink(ctx, userID, friendUserID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to fetch friendship", err)
	}
	if link == nil {
		return apperr.New(apperr.KindNotFound, "friendship not found")
	}

	now := time.Now()
	allowed, err := s.knocks.Allow(ctx, userID.Hex(), friendUserID.Hex(), now)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to check knock limit", err)
	}
	if !allowed {
		return apperr.New(apperr.KindConflict, "you have already knocked this friend this week")
	}

	if err := s.friends.SetLastKnock(ctx, userID, friendUserID, now); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to record knock", err)
	}

	sender, err := s.users.GetUserByID(ctx, userID)
	if err == nil {
		s.notify(ctx, friendUserID, "knock", "Knock Knock!",
			fmt.Sprintf("%s is cheering you on. Keep your momentum going!", sender.Nickname), &userID)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":   userID.Hex(),
		"friend_id": friendUserID.Hex(),
	}).Info("Knock delivered")
	return nil
}

// publicProfiles loads the public view of a set of users keyed by ID.
func (s *FriendService) publicProfiles(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.PublicUser, error) {
	profiles := make(map[primitive.ObjectID]*models.PublicUser, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch user profiles", err)
	}
	for i := range users {
		u := users[i]
		pub := u.Public()
		profiles[u.ID] = &pub
	}
	return profiles, nil
}

// notify records a notification and logs instead of failing the main
// operation when it cannot be stored.
func (s *FriendService) notify(ctx context.Context, userID primitive.ObjectID, notifType, title, message string, targetID *primitive.ObjectID) {
	if err := s.notifications.CreateNotification(ctx, userID, notifType, title, message, targetID); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID.Hex()).Warn("Failed to create notification")
	}
}
