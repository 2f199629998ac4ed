package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/httpx"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MomentHandler handles check-in submissions.
type MomentHandler struct {
	Service *services.MomentService
}

// NewMomentHandler creates a new instance of MomentHandler.
func NewMomentHandler(service *services.MomentService) *MomentHandler {
	return &MomentHandler{Service: service}
}

// UpdateMomentHandler records a day's check-in. Accepts either a JSON
// body or multipart form data when a proof photo is attached.
func (h *MomentHandler) UpdateMomentHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("UpdateMomentHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	momentID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid moment id"))
		return
	}

	update, cleanup, err := h.decodeUpdate(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}
	defer cleanup()

	result, err := h.Service.CompleteMoment(r.Context(), momentID, userID, *update)
	if err != nil {
		log.WithError(err).Warn("Failed to update moment")
		httpx.Fail(w, err)
		return
	}

	fields := map[string]interface{}{
		"moment":                  result.Moment,
		"moments_count":           result.MomentsCount,
		"completed_moments_count": result.CompletedCount,
	}
	message := "moment updated"
	if result.Bucket != nil {
		fields["bucket"] = result.Bucket
		message = "moment updated, challenge completed"
	}
	httpx.OK(w, http.StatusOK, message, fields)
}

func (h *MomentHandler) decodeUpdate(r *http.Request) (*services.MomentUpdate, func(), error) {
	cleanup := func() {}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, cleanup, err
		}
		update := &services.MomentUpdate{}
		if content := r.FormValue("content"); content != "" {
			update.Content = &content
		}
		if v := r.FormValue("is_completed"); v != "" {
			completed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, cleanup, err
			}
			update.Completed = &completed
		}
		photo, closePhoto, err := formPhoto(r)
		if err != nil {
			return nil, cleanup, err
		}
		update.Photo = photo
		return update, closePhoto, nil
	}

	var req struct {
		Content     *string `json:"content,omitempty"`
		IsCompleted *bool   `json:"is_completed,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, cleanup, err
	}
	return &services.MomentUpdate{
		Content:   req.Content,
		Completed: req.IsCompleted,
	}, cleanup, nil
}
