package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// fakeStore is an in-memory implementation of every store interface so
// services can be exercised without a running MongoDB.
type fakeStore struct {
	users         map[primitive.ObjectID]*models.User
	buckets       map[primitive.ObjectID]*models.Bucket
	moments       map[primitive.ObjectID]*models.Moment
	requests      map[primitive.ObjectID]*models.FriendRequest
	links         map[string]*models.Friend
	cheers        map[string]bool
	notifications []models.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[primitive.ObjectID]*models.User),
		buckets:  make(map[primitive.ObjectID]*models.Bucket),
		moments:  make(map[primitive.ObjectID]*models.Moment),
		requests: make(map[primitive.ObjectID]*models.FriendRequest),
		links:    make(map[string]*models.Friend),
		cheers:   make(map[string]bool),
	}
}

func linkKey(a, b primitive.ObjectID) string {
	return a.Hex() + ":" + b.Hex()
}

func (f *fakeStore) addUser(u *models.User) *models.User {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addBucket(b *models.Bucket) *models.Bucket {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	f.buckets[b.ID] = b
	return b
}

func (f *fakeStore) addMoment(m *models.Moment) *models.Moment {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	f.moments[m.ID] = m
	return m
}

// --- UserStore ---

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	return f.addUser(user), nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) GetUserByFriendCode(ctx context.Context, code string) (*models.User, error) {
	for _, u := range f.users {
		if u.FriendCode == code {
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) GetUserByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	for _, u := range f.users {
		if u.VerifyToken == token {
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeStore) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, id primitive.ObjectID, update map[string]interface{}) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	if v, ok := update["nickname"].(string); ok {
		u.Nickname = v
	}
	if v, ok := update["profile_image_url"].(string); ok {
		u.ProfileImageURL = v
	}
	if v, ok := update["is_verified"].(bool); ok {
		u.IsVerified = v
	}
	if v, ok := update["verify_token"].(string); ok {
		u.VerifyToken = v
	}
	return u, nil
}

func (f *fakeStore) ReserveChallengeSlot(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	u, ok := f.users[userID]
	if !ok {
		return false, nil
	}
	if u.ActiveChallengeCount >= models.MaxActiveChallenges {
		return false, nil
	}
	u.ActiveChallengeCount++
	return true, nil
}

func (f *fakeStore) ReleaseChallengeSlot(ctx context.Context, userID primitive.ObjectID) (int, error) {
	u, ok := f.users[userID]
	if !ok {
		return 0, nil
	}
	if u.ActiveChallengeCount > 0 {
		u.ActiveChallengeCount--
	}
	return u.ActiveChallengeCount, nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	delete(f.users, id)
	return nil
}

// --- BucketStore ---

func (f *fakeStore) CreateBucket(ctx context.Context, bucket *models.Bucket) (*models.Bucket, error) {
	bucket.CreatedAt = time.Now()
	bucket.UpdatedAt = bucket.CreatedAt
	return f.addBucket(bucket), nil
}

func (f *fakeStore) GetBucketByID(ctx context.Context, id primitive.ObjectID) (*models.Bucket, error) {
	b, ok := f.buckets[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) GetBucketsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Bucket, error) {
	var out []models.Bucket
	for _, b := range f.buckets {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetChallengingBucketsByUsers(ctx context.Context, userIDs []primitive.ObjectID) ([]models.Bucket, error) {
	var out []models.Bucket
	for _, id := range userIDs {
		for _, b := range f.buckets {
			if b.UserID == id && b.IsChallenging {
				out = append(out, *b)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateBucketContent(ctx context.Context, id primitive.ObjectID, content string) (*models.Bucket, error) {
	b, ok := f.buckets[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	b.Content = content
	copied := *b
	return &copied, nil
}

func (f *fakeStore) SetChallenging(ctx context.Context, id primitive.ObjectID, active bool) (*models.Bucket, bool, error) {
	b, ok := f.buckets[id]
	if !ok || b.IsChallenging == active {
		return nil, false, nil
	}
	b.IsChallenging = active
	copied := *b
	return &copied, true, nil
}

func (f *fakeStore) CompleteAchievement(ctx context.Context, id primitive.ObjectID, photoURL string) (*models.Bucket, error) {
	b, ok := f.buckets[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	b.IsCompleted = true
	b.PhotoURL = photoURL
	copied := *b
	return &copied, nil
}

func (f *fakeStore) CountActiveChallenges(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	var count int64
	for _, b := range f.buckets {
		if b.UserID == userID && b.IsChallenging {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) FindExpiredChallenges(ctx context.Context, now time.Time) ([]models.Bucket, error) {
	var out []models.Bucket
	for _, b := range f.buckets {
		if b.IsChallenging && b.EndDate != nil && b.EndDate.Before(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) ExpireChallenge(ctx context.Context, bucketID, ownerID primitive.ObjectID) error {
	for id, m := range f.moments {
		if m.BucketID == bucketID && !m.IsCompleted {
			delete(f.moments, id)
		}
	}
	b, ok := f.buckets[bucketID]
	if !ok || !b.IsChallenging {
		return nil
	}
	b.IsChallenging = false
	if u, ok := f.users[ownerID]; ok && u.ActiveChallengeCount > 0 {
		u.ActiveChallengeCount--
	}
	return nil
}

func (f *fakeStore) DeleteBucket(ctx context.Context, bucketID primitive.ObjectID) error {
	b, ok := f.buckets[bucketID]
	if !ok {
		return mongo.ErrNoDocuments
	}
	for id, m := range f.moments {
		if m.BucketID == bucketID {
			delete(f.moments, id)
		}
	}
	if b.IsChallenging {
		if u, ok := f.users[b.UserID]; ok && u.ActiveChallengeCount > 0 {
			u.ActiveChallengeCount--
		}
	}
	delete(f.buckets, bucketID)
	return nil
}

func (f *fakeStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	for id, b := range f.buckets {
		if b.UserID == userID {
			delete(f.buckets, id)
		}
	}
	for id, m := range f.moments {
		if m.UserID == userID {
			delete(f.moments, id)
		}
	}
	for id, r := range f.requests {
		if r.RequesterID == userID || r.ReceiverID == userID {
			delete(f.requests, id)
		}
	}
	for key, l := range f.links {
		if l.UserID == userID || l.FriendUserID == userID {
			delete(f.links, key)
		}
	}
	kept := f.notifications[:0]
	for _, n := range f.notifications {
		if n.UserID != userID {
			kept = append(kept, n)
		}
	}
	f.notifications = kept
	return nil
}

// --- MomentStore ---

func (f *fakeStore) BulkCreate(ctx context.Context, bucketID primitive.ObjectID, window *models.ChallengeWindow, moments []*models.Moment) (*models.Bucket, []models.Moment, error) {
	b, ok := f.buckets[bucketID]
	if !ok {
		return nil, nil, mongo.ErrNoDocuments
	}
	created := make([]models.Moment, 0, len(moments))
	for _, m := range moments {
		m.BucketID = bucketID
		f.addMoment(m)
		created = append(created, *m)
	}
	if window != nil {
		start := window.StartDate
		end := window.EndDate
		b.StartDate = &start
		b.EndDate = &end
		b.Frequency = window.Frequency
	}
	copied := *b
	return &copied, created, nil
}

func (f *fakeStore) GetMomentByID(ctx context.Context, id primitive.ObjectID) (*models.Moment, error) {
	m, ok := f.moments[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *m
	return &copied, nil
}

func (f *fakeStore) GetMomentsByBucket(ctx context.Context, bucketID primitive.ObjectID) ([]models.Moment, error) {
	var out []models.Moment
	for _, m := range f.moments {
		if m.BucketID == bucketID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (f *fakeStore) CountsByBucket(ctx context.Context, bucketID primitive.ObjectID) (int64, int64, error) {
	var total, completed int64
	for _, m := range f.moments {
		if m.BucketID == bucketID {
			total++
			if m.IsCompleted {
				completed++
			}
		}
	}
	return total, completed, nil
}

func (f *fakeStore) CountsByBuckets(ctx context.Context, bucketIDs []primitive.ObjectID) (map[primitive.ObjectID][2]int64, error) {
	out := make(map[primitive.ObjectID][2]int64, len(bucketIDs))
	for _, id := range bucketIDs {
		total, completed, _ := f.CountsByBucket(ctx, id)
		out[id] = [2]int64{total, completed}
	}
	return out, nil
}

func (f *fakeStore) CompleteAndReconcile(ctx context.Context, momentID primitive.ObjectID, set bson.M) (*models.Moment, *models.Bucket, int64, int64, error) {
	m, ok := f.moments[momentID]
	if !ok {
		return nil, nil, 0, 0, mongo.ErrNoDocuments
	}
	if v, ok := set["content"].(string); ok {
		m.Content = v
	}
	if v, ok := set["photo_url"].(string); ok {
		m.PhotoURL = v
	}
	if v, ok := set["is_completed"].(bool); ok {
		m.IsCompleted = v
	}
	if v, ok := set["completed_at"].(time.Time); ok {
		m.CompletedAt = &v
	}

	total, completed, _ := f.CountsByBucket(ctx, m.BucketID)

	var bucketOut *models.Bucket
	if total > 0 && total == completed {
		b := f.buckets[m.BucketID]
		if b != nil && b.IsChallenging {
			b.IsChallenging = false
			b.IsCompleted = true
			if u, ok := f.users[b.UserID]; ok && u.ActiveChallengeCount > 0 {
				u.ActiveChallengeCount--
			}
			copied := *b
			bucketOut = &copied
		}
	}

	momentOut := *m
	return &momentOut, bucketOut, total, completed, nil
}

func (f *fakeStore) GetMomentsByUserInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]models.Moment, error) {
	var out []models.Moment
	for _, m := range f.moments {
		if m.UserID == userID && m.StartDate.Before(to) && !m.EndDate.Before(from) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRecentByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Moment, error) {
	var out []models.Moment
	for _, m := range f.moments {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- FriendStore ---

func (f *fakeStore) CreateRequest(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, error) {
	if req.ID.IsZero() {
		req.ID = primitive.NewObjectID()
	}
	req.CreatedAt = time.Now()
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeStore) GetRequestByID(ctx context.Context, id primitive.ObjectID) (*models.FriendRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) FindRequestBetween(ctx context.Context, a, b primitive.ObjectID) (*models.FriendRequest, error) {
	var latest *models.FriendRequest
	for _, r := range f.requests {
		match := (r.RequesterID == a && r.ReceiverID == b) || (r.RequesterID == b && r.ReceiverID == a)
		if match && (latest == nil || r.CreatedAt.After(latest.CreatedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeStore) GetPendingByReceiver(ctx context.Context, receiverID primitive.ObjectID) ([]models.FriendRequest, error) {
	var out []models.FriendRequest
	for _, r := range f.requests {
		if r.ReceiverID == receiverID && r.Status == models.RequestStatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPendingByRequester(ctx context.Context, requesterID primitive.ObjectID) ([]models.FriendRequest, error) {
	var out []models.FriendRequest
	for _, r := range f.requests {
		if r.RequesterID == requesterID && r.Status == models.RequestStatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRequestStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	r, ok := f.requests[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	r.Status = status
	return nil
}

func (f *fakeStore) CreateFriendPair(ctx context.Context, a, b primitive.ObjectID) error {
	now := time.Now()
	f.links[linkKey(a, b)] = &models.Friend{ID: primitive.NewObjectID(), UserID: a, FriendUserID: b, CreatedAt: now}
	f.links[linkKey(b, a)] = &models.Friend{ID: primitive.NewObjectID(), UserID: b, FriendUserID: a, CreatedAt: now}
	return nil
}

func (f *fakeStore) GetFriendLinks(ctx context.Context, userID primitive.ObjectID) ([]models.Friend, error) {
	var out []models.Friend
	for _, l := range f.links {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeStore) GetFriendLink(ctx context.Context, userID, friendUserID primitive.ObjectID) (*models.Friend, error) {
	l, ok := f.links[linkKey(userID, friendUserID)]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (f *fakeStore) DeleteFriendPair(ctx context.Context, a, b primitive.ObjectID) error {
	delete(f.links, linkKey(a, b))
	delete(f.links, linkKey(b, a))
	for _, r := range f.requests {
		match := (r.RequesterID == a && r.ReceiverID == b) || (r.RequesterID == b && r.ReceiverID == a)
		if match && r.Status == models.RequestStatusAccepted {
			r.Status = models.RequestStatusDeleted
		}
	}
	return nil
}

func (f *fakeStore) SetFixed(ctx context.Context, userID, friendUserID primitive.ObjectID, fixed bool) error {
	l, ok := f.links[linkKey(userID, friendUserID)]
	if !ok {
		return mongo.ErrNoDocuments
	}
	l.IsFixed = fixed
	if fixed {
		now := time.Now()
		l.FixedAt = &now
	} else {
		l.FixedAt = nil
	}
	return nil
}

func (f *fakeStore) SetLastKnock(ctx context.Context, userID, friendUserID primitive.ObjectID, at time.Time) error {
	l, ok := f.links[linkKey(userID, friendUserID)]
	if !ok {
		return mongo.ErrNoDocuments
	}
	l.LastKnockAt = &at
	return nil
}

func (f *fakeStore) CreateCheer(ctx context.Context, senderID, bucketID primitive.ObjectID) (bool, error) {
	key := senderID.Hex() + ":" + bucketID.Hex()
	if f.cheers[key] {
		return false, nil
	}
	f.cheers[key] = true
	return true, nil
}

func (f *fakeStore) GetCheeredBuckets(ctx context.Context, senderID primitive.ObjectID, bucketIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	out := make(map[primitive.ObjectID]bool, len(bucketIDs))
	for _, id := range bucketIDs {
		if f.cheers[senderID.Hex()+":"+id.Hex()] {
			out[id] = true
		}
	}
	return out, nil
}

// --- NotificationStore ---

func (f *fakeStore) CreateNotification(ctx context.Context, notif *models.Notification) error {
	notif.ID = primitive.NewObjectID()
	notif.CreatedAt = time.Now()
	f.notifications = append(f.notifications, *notif)
	return nil
}

func (f *fakeStore) GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	var count int64
	for _, n := range f.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) MarkAsRead(ctx context.Context, id primitive.ObjectID) error {
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].Read = true
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (f *fakeStore) DeleteNotification(ctx context.Context, id primitive.ObjectID) error {
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (f *fakeStore) DeleteExpiredNotifications(ctx context.Context) error {
	return nil
}

// fakeUploader records keys and returns deterministic URLs.
type fakeUploader struct {
	uploads []string
}

func (u *fakeUploader) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	u.uploads = append(u.uploads, key)
	return fmt.Sprintf("https://cdn.test/%s", key), nil
}

// fakeKnockLimiter allows a fixed number of knocks per pair.
type fakeKnockLimiter struct {
	used map[string]bool
}

func newFakeKnockLimiter() *fakeKnockLimiter {
	return &fakeKnockLimiter{used: make(map[string]bool)}
}

func (l *fakeKnockLimiter) Allow(ctx context.Context, fromUserID, toUserID string, now time.Time) (bool, error) {
	key := fromUserID + ":" + toUserID
	if l.used[key] {
		return false, nil
	}
	l.used[key] = true
	return true, nil
}
