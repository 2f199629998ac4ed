package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/momentum-app/momentum-server/internal/notify"
	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/httpx"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// longPollTimeout bounds how long a poll request may hang before it
// returns the unchanged count.
const longPollTimeout = 30 * time.Second

// NotificationHandler serves the notification list and the two push
// channels: HTTP long-poll and WebSocket.
type NotificationHandler struct {
	Service *services.NotificationService
	Hub     *notify.Hub
}

// NewNotificationHandler creates a new instance of NotificationHandler.
func NewNotificationHandler(service *services.NotificationService, hub *notify.Hub) *NotificationHandler {
	return &NotificationHandler{
		Service: service,
		Hub:     hub,
	}
}

// GetNotificationsHandler lists the user's live notifications.
func (h *NotificationHandler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	notifications, err := h.Service.GetUserNotifications(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "notifications fetched", map[string]interface{}{
		"notifications": notifications,
	})
}

// GetUnreadCountHandler returns the current unread count.
func (h *NotificationHandler) GetUnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.Service.UnreadCount(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "unread count fetched", map[string]interface{}{
		"unread_count": count,
	})
}

// PollHandler is the long-poll push channel. It answers immediately when
// the unread count differs from the client's ?known= value, otherwise it
// parks on the hub until a new notification arrives, the timeout fires
// or the client goes away.
func (h *NotificationHandler) PollHandler(w http.ResponseWriter, r *http.Request) {
	userID, claims, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.Service.UnreadCount(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}

	known := r.URL.Query().Get("known")
	if known == "" || known != strconv.FormatInt(count, 10) {
		httpx.OK(w, http.StatusOK, "unread count", map[string]interface{}{
			"unread_count": count,
			"changed":      known != "",
		})
		return
	}

	updates, cancel := h.Hub.Subscribe(claims.UserID)
	defer cancel()

	timer := time.NewTimer(longPollTimeout)
	defer timer.Stop()

	select {
	case fresh := <-updates:
		httpx.OK(w, http.StatusOK, "unread count", map[string]interface{}{
			"unread_count": fresh,
			"changed":      true,
		})
	case <-timer.C:
		httpx.OK(w, http.StatusOK, "unread count", map[string]interface{}{
			"unread_count": count,
			"changed":      false,
		})
	case <-r.Context().Done():
		// Client hung up; nothing to write.
	}
}

// MarkAsReadHandler flips one notification to read.
func (h *NotificationHandler) MarkAsReadHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("MarkAsReadHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	notifID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid notification id"))
		return
	}

	if err := h.Service.MarkNotificationAsRead(r.Context(), userID, notifID); err != nil {
		log.WithError(err).Warn("Failed to mark notification as read")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "notification marked as read", nil)
}

// DeleteNotificationHandler removes one notification.
func (h *NotificationHandler) DeleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("DeleteNotificationHandler called")
	if _, _, ok := requireUser(w, r); !ok {
		return
	}

	notifID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid notification id"))
		return
	}

	if err := h.Service.DeleteNotification(r.Context(), notifID); err != nil {
		log.WithError(err).Warn("Failed to delete notification")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "notification deleted", nil)
}
