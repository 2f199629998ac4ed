package services

import (
	"context"
	"testing"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNotification_PublishesUnreadCount(t *testing.T) {
	store := newFakeStore()
	hub := notify.NewHub()
	svc := NewNotificationService(store, hub)
	ctx := context.Background()

	user := store.addUser(&models.User{Nickname: "mina", Email: "mina@example.com"})
	updates, cancel := hub.Subscribe(user.ID.Hex())
	defer cancel()

	require.NoError(t, svc.CreateNotification(ctx, user.ID, "knock", "Knock Knock!", "sol is cheering you on", nil))

	select {
	case count := <-updates:
		assert.Equal(t, int64(1), count)
	case <-time.After(time.Second):
		t.Fatal("expected an unread count publish")
	}

	notifs, err := svc.GetUserNotifications(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, "Knock Knock!", notifs[0].Title)
	assert.False(t, notifs[0].Read)
}

func TestMarkNotificationAsRead_RepublishesCount(t *testing.T) {
	store := newFakeStore()
	hub := notify.NewHub()
	svc := NewNotificationService(store, hub)
	ctx := context.Background()

	user := store.addUser(&models.User{Nickname: "mina", Email: "mina@example.com"})
	require.NoError(t, svc.CreateNotification(ctx, user.ID, "cheer", "New Cheer", "sol cheered you", nil))
	require.NoError(t, svc.CreateNotification(ctx, user.ID, "knock", "Knock Knock!", "sol knocked", nil))

	count, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	updates, cancel := hub.Subscribe(user.ID.Hex())
	defer cancel()

	notifs, _ := svc.GetUserNotifications(ctx, user.ID)
	require.NoError(t, svc.MarkNotificationAsRead(ctx, user.ID, notifs[0].ID))

	select {
	case fresh := <-updates:
		assert.Equal(t, int64(1), fresh)
	case <-time.After(time.Second):
		t.Fatal("expected a republished count")
	}
}

func TestDeleteNotification(t *testing.T) {
	store := newFakeStore()
	svc := NewNotificationService(store, notify.NewHub())
	ctx := context.Background()

	user := store.addUser(&models.User{Nickname: "mina", Email: "mina@example.com"})
	require.NoError(t, svc.CreateNotification(ctx, user.ID, "cheer", "New Cheer", "sol cheered you", nil))

	notifs, _ := svc.GetUserNotifications(ctx, user.ID)
	require.Len(t, notifs, 1)
	require.NoError(t, svc.DeleteNotification(ctx, notifs[0].ID))

	notifs, _ = svc.GetUserNotifications(ctx, user.ID)
	assert.Empty(t, notifs)
}
