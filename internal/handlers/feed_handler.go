package handlers

import (
	"net/http"

	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/httpx"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedHandler serves the friends feed.
type FeedHandler struct {
	Service *services.FeedService
}

// NewFeedHandler creates a new instance of FeedHandler.
func NewFeedHandler(service *services.FeedService) *FeedHandler {
	return &FeedHandler{Service: service}
}

// GetFeedHandler returns every friend's active challenges with progress.
func (h *FeedHandler) GetFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	feed, err := h.Service.GetFeed(r.Context(), userID)
	if err != nil {
		log.WithError(err).Error("Failed to build feed")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "feed fetched", map[string]interface{}{
		"feed": feed,
	})
}

// CheerHandler records a one-time cheer on a friend's bucket.
func (h *FeedHandler) CheerHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("CheerHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	bucketID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	if err := h.Service.CheerBucket(r.Context(), userID, bucketID); err != nil {
		log.WithError(err).Warn("Failed to cheer bucket")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "cheer recorded", nil)
}
