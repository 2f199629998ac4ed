package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/httpx"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FriendHandler handles the friendship graph endpoints.
type FriendHandler struct {
	Service *services.FriendService
}

// NewFriendHandler creates a new instance of FriendHandler.
func NewFriendHandler(service *services.FriendService) *FriendHandler {
	return &FriendHandler{Service: service}
}

// SendRequestHandler creates a friend request addressed by friend code.
func (h *FriendHandler) SendRequestHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("SendRequestHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		FriendCode string `json:"friend_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}

	request, err := h.Service.SendRequest(r.Context(), userID, req.FriendCode)
	if err != nil {
		log.WithError(err).Warn("Failed to send friend request")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "friend request sent", map[string]interface{}{
		"request": request,
	})
}

// GetRequestsHandler lists pending requests, sent and received.
func (h *FriendHandler) GetRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	received, sent, err := h.Service.GetRequests(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "requests fetched", map[string]interface{}{
		"received": received,
		"sent":     sent,
	})
}

// RespondToRequestHandler accepts or rejects a pending request.
func (h *FriendHandler) RespondToRequestHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("RespondToRequestHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	requestID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request id"))
		return
	}

	var req struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}

	if err := h.Service.RespondToRequest(r.Context(), requestID, userID, req.Accept); err != nil {
		log.WithError(err).Warn("Failed to respond to friend request")
		httpx.Fail(w, err)
		return
	}

	message := "friend request rejected"
	if req.Accept {
		message = "friend request accepted"
	}
	httpx.OK(w, http.StatusOK, message, nil)
}

// GetFriendsHandler lists the user's friends.
func (h *FriendHandler) GetFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	friends, err := h.Service.GetFriends(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "friends fetched", map[string]interface{}{
		"friends": friends,
	})
}

// RemoveFriendHandler deletes a friendship.
func (h *FriendHandler) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("RemoveFriendHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	friendID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid friend id"))
		return
	}

	if err := h.Service.RemoveFriend(r.Context(), userID, friendID); err != nil {
		log.WithError(err).Warn("Failed to remove friend")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "friend removed", nil)
}

// FixFriendHandler pins or unpins a friend on the home screen.
func (h *FriendHandler) FixFriendHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("FixFriendHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	friendID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid friend id"))
		return
	}

	var req struct {
		Fixed bool `json:"fixed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}

	if err := h.Service.FixFriend(r.Context(), userID, friendID, req.Fixed); err != nil {
		log.WithError(err).Warn("Failed to update friend pin")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "friend pin updated", nil)
}

// KnockHandler nudges a friend, once per week.
func (h *FriendHandler) KnockHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("KnockHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	friendID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid friend id"))
		return
	}

	if err := h.Service.Knock(r.Context(), userID, friendID); err != nil {
		log.WithError(err).Warn("Failed to knock")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "knock delivered", nil)
}
