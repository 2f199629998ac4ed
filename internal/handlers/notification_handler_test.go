package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/internal/notify"
	"github.com/momentum-app/momentum-server/internal/services"
	jwtutil "github.com/momentum-app/momentum-server/pkg/jwt"
	"github.com/momentum-app/momentum-server/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// memNotificationStore is a minimal in-memory NotificationStore for
// exercising the poll endpoint.
type memNotificationStore struct {
	notifications []models.Notification
}

func (s *memNotificationStore) CreateNotification(ctx context.Context, notif *models.Notification) error {
	notif.ID = primitive.NewObjectID()
	s.notifications = append(s.notifications, *notif)
	return nil
}

func (s *memNotificationStore) GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memNotificationStore) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	var count int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *memNotificationStore) MarkAsRead(ctx context.Context, id primitive.ObjectID) error {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (s *memNotificationStore) DeleteNotification(ctx context.Context, id primitive.ObjectID) error {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (s *memNotificationStore) DeleteExpiredNotifications(ctx context.Context) error { return nil }

func (s *memNotificationStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	return nil
}

func authedRequest(t *testing.T, method, target string, userID primitive.ObjectID) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, target, nil)
	claims := &jwtutil.Claims{UserID: userID.Hex()}
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, claims)
	return r.WithContext(ctx)
}

func pollBody(t *testing.T, rec *httptest.ResponseRecorder) (int64, bool) {
	t.Helper()
	var body struct {
		UnreadCount int64 `json:"unread_count"`
		Changed     bool  `json:"changed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.UnreadCount, body.Changed
}

func TestPollHandler_AnswersImmediatelyOnStaleKnown(t *testing.T) {
	store := &memNotificationStore{}
	hub := notify.NewHub()
	handler := NewNotificationHandler(services.NewNotificationService(store, hub), hub)

	userID := primitive.NewObjectID()
	require.NoError(t, store.CreateNotification(context.Background(), &models.Notification{UserID: userID}))

	rec := httptest.NewRecorder()
	handler.PollHandler(rec, authedRequest(t, http.MethodGet, "/notifications/poll?known=0", userID))

	assert.Equal(t, http.StatusOK, rec.Code)
	count, changed := pollBody(t, rec)
	assert.Equal(t, int64(1), count)
	assert.True(t, changed)
}

func TestPollHandler_WakesOnNewNotification(t *testing.T) {
	store := &memNotificationStore{}
	hub := notify.NewHub()
	service := services.NewNotificationService(store, hub)
	handler := NewNotificationHandler(service, hub)

	userID := primitive.NewObjectID()

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		handler.PollHandler(rec, authedRequest(t, http.MethodGet, "/notifications/poll?known=0", userID))
		done <- rec
	}()

	// Give the poll a moment to park, then create a notification.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, service.CreateNotification(context.Background(), userID, "knock", "Knock Knock!", "hello", nil))

	select {
	case rec := <-done:
		count, changed := pollBody(t, rec)
		assert.Equal(t, int64(1), count)
		assert.True(t, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("poll should wake when a notification arrives")
	}
}

func TestPollHandler_ClientDisconnectReleasesPoll(t *testing.T) {
	store := &memNotificationStore{}
	hub := notify.NewHub()
	handler := NewNotificationHandler(services.NewNotificationService(store, hub), hub)

	userID := primitive.NewObjectID()
	ctx, cancel := context.WithCancel(context.Background())
	r := authedRequest(t, http.MethodGet, "/notifications/poll?known=0", userID)
	r = r.WithContext(context.WithValue(ctx, middleware.UserContextKey, &jwtutil.Claims{UserID: userID.Hex()}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.PollHandler(httptest.NewRecorder(), r)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll should return when the client disconnects")
	}
}
