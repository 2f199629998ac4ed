package services

import (
	"context"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/internal/notify"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationService stores notifications and pushes fresh unread
// counts to watchers through the hub.
type NotificationService struct {
	repo NotificationStore
	hub  *notify.Hub
}

func NewNotificationService(repo NotificationStore, hub *notify.Hub) *NotificationService {
	return &NotificationService{
		repo: repo,
		hub:  hub,
	}
}

// CreateNotification logs a new notification for a user and wakes any
// suspended watcher with the new unread count.
func (s *NotificationService) CreateNotification(ctx context.Context, userID primitive.ObjectID, notifType, title, message string, targetID *primitive.ObjectID) error {
	notif := &models.Notification{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Read:     false,
		TargetID: targetID,
	}
	if err := s.repo.CreateNotification(ctx, notif); err != nil {
		return err
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		logrus.WithError(err).Warn("Failed to count unread notifications after create")
		return nil
	}
	s.hub.Publish(userID.Hex(), count)
	return nil
}

// GetUserNotifications returns all live notifications for a user.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	notifs, err := s.repo.GetUserNotifications(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch notifications", err)
	}
	return notifs, nil
}

// UnreadCount returns the user's current unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to count notifications", err)
	}
	return count, nil
}

// MarkNotificationAsRead flips a notification to read and re-publishes
// the owner's unread count.
func (s *NotificationService) MarkNotificationAsRead(ctx context.Context, userID, notifID primitive.ObjectID) error {
	if err := s.repo.MarkAsRead(ctx, notifID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to mark notification as read", err)
	}

	if count, err := s.repo.CountUnread(ctx, userID); err == nil {
		s.hub.Publish(userID.Hex(), count)
	}
	return nil
}

// DeleteNotification deletes a specific notification.
func (s *NotificationService) DeleteNotification(ctx context.Context, notifID primitive.ObjectID) error {
	if err := s.repo.DeleteNotification(ctx, notifID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete notification", err)
	}
	return nil
}

// DeleteExpiredNotifications is called by the scheduler to purge old rows.
func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context) error {
	return s.repo.DeleteExpiredNotifications(ctx)
}
