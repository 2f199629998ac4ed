package handlers

import (
	"net/http"
	"time"

	"github.com/momentum-app/momentum-server/internal/notify"
	"github.com/momentum-app/momentum-server/internal/services"
	jwtutil "github.com/momentum-app/momentum-server/pkg/jwt"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsPingInterval = 30 * time.Second

// NotificationSocketHandler pushes unread-count updates over a
// WebSocket. Auth rides in the ?token= query parameter because browser
// WebSocket clients cannot set headers.
type NotificationSocketHandler struct {
	Service   *services.NotificationService
	Hub       *notify.Hub
	JWTSecret string
}

func NewNotificationSocketHandler(service *services.NotificationService, hub *notify.Hub, jwtSecret string) *NotificationSocketHandler {
	return &NotificationSocketHandler{
		Service:   service,
		Hub:       hub,
		JWTSecret: jwtSecret,
	}
}

type unreadCountMessage struct {
	Type        string `json:"type"`
	UnreadCount int64  `json:"unread_count"`
}

// ServeWS upgrades the connection and streams unread counts until the
// client disconnects.
func (h *NotificationSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		log.WithError(err).Warn("WebSocket auth failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log.WithField("userID", claims.UserID).Info("Notification socket connected")

	updates, cancel := h.Hub.Subscribe(claims.UserID)
	defer cancel()

	// Drain the read side so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if count, err := h.Service.UnreadCount(r.Context(), userID); err == nil {
		if err := conn.WriteJSON(unreadCountMessage{Type: "unread_count", UnreadCount: count}); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case count := <-updates:
			if err := conn.WriteJSON(unreadCountMessage{Type: "unread_count", UnreadCount: count}); err != nil {
				log.WithError(err).Debug("Notification socket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-done:
			log.WithField("userID", claims.UserID).Info("Notification socket disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}
