package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/httpx"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BucketHandler handles HTTP requests for buckets and their challenge
// lifecycle.
type BucketHandler struct {
	Buckets *services.BucketService
	Moments *services.MomentService
}

// NewBucketHandler creates a new instance of BucketHandler.
func NewBucketHandler(buckets *services.BucketService, moments *services.MomentService) *BucketHandler {
	return &BucketHandler{
		Buckets: buckets,
		Moments: moments,
	}
}

func bucketIDFromPath(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(mux.Vars(r)["id"])
}

// CreateBucketHandler creates a new bucket.
func (h *BucketHandler) CreateBucketHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("CreateBucketHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}

	bucket, err := h.Buckets.CreateBucket(r.Context(), userID, req.Type, req.Content)
	if err != nil {
		log.WithError(err).Warn("Failed to create bucket")
		httpx.Fail(w, err)
		return
	}

	log.WithField("bucketID", bucket.ID.Hex()).Info("Bucket created successfully")
	httpx.OK(w, http.StatusCreated, "bucket created", map[string]interface{}{
		"bucket": bucket,
	})
}

// GetBucketsHandler lists the caller's buckets.
func (h *BucketHandler) GetBucketsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	buckets, err := h.Buckets.GetBuckets(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "buckets fetched", map[string]interface{}{
		"buckets": buckets,
	})
}

// GetBucketHandler returns one bucket with its moments and counts.
func (h *BucketHandler) GetBucketHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}
	bucketID, err := bucketIDFromPath(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	detail, err := h.Buckets.GetBucketDetail(r.Context(), bucketID, userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "bucket fetched", map[string]interface{}{
		"bucket":                  detail.Bucket,
		"moments":                 detail.Moments,
		"moments_count":           detail.MomentsCount,
		"completed_moments_count": detail.CompletedCount,
	})
}

// UpdateBucketHandler changes a bucket's content.
func (h *BucketHandler) UpdateBucketHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("UpdateBucketHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}
	bucketID, err := bucketIDFromPath(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}

	bucket, err := h.Buckets.UpdateBucket(r.Context(), bucketID, userID, req.Content)
	if err != nil {
		log.WithError(err).Warn("Failed to update bucket")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "bucket updated", map[string]interface{}{
		"bucket": bucket,
	})
}

// DeleteBucketHandler removes a bucket and its moments.
func (h *BucketHandler) DeleteBucketHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("DeleteBucketHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}
	bucketID, err := bucketIDFromPath(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	if err := h.Buckets.DeleteBucket(r.Context(), bucketID, userID); err != nil {
		log.WithError(err).Warn("Failed to delete bucket")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "bucket deleted", nil)
}

// ChallengeHandler activates the challenge on a repeat bucket.
func (h *BucketHandler) ChallengeHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("ChallengeHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}
	bucketID, err := bucketIDFromPath(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	bucket, count, err := h.Buckets.ActivateChallenge(r.Context(), bucketID, userID)
	if err != nil {
		log.WithError(err).Warn("Failed to activate challenge")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "challenge activated", map[string]interface{}{
		"bucket":                 bucket,
		"active_challenge_count": count,
	})
}

// UnchallengeHandler deactivates a running challenge.
func (h *BucketHandler) UnchallengeHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("UnchallengeHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}
	bucketID, err := bucketIDFromPath(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	bucket, remaining, freedSlot, err := h.Buckets.DeactivateChallenge(r.Context(), bucketID, userID)
	if err != nil {
		log.WithError(err).Warn("Failed to deactivate challenge")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "challenge deactivated", map[string]interface{}{
		"bucket":                 bucket,
		"active_challenge_count": remaining,
		"freed_slot":             freedSlot,
	})
}

// AchieveHandler completes an achievement bucket with photo proof.
// Accepts multipart form data with a required "photo" part.
func (h *BucketHandler) AchieveHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("AchieveHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}
	bucketID, err := bucketIDFromPath(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid multipart payload"))
		return
	}
	photo, closePhoto, err := formPhoto(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "failed to read photo"))
		return
	}
	defer closePhoto()
	if photo == nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "a verification photo is required"))
		return
	}

	bucket, err := h.Buckets.CompleteAchievement(r.Context(), bucketID, userID, photo.ContentType, photo.Body)
	if err != nil {
		log.WithError(err).Warn("Failed to complete achievement")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "achievement completed", map[string]interface{}{
		"bucket": bucket,
	})
}

// CreateMomentsHandler bulk-seeds a bucket's check-in calendar.
func (h *BucketHandler) CreateMomentsHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("CreateMomentsHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}
	bucketID, err := bucketIDFromPath(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	var req struct {
		Window  *models.ChallengeWindow     `json:"window,omitempty"`
		Moments []services.MomentDescriptor `json:"moments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}

	bucket, moments, err := h.Moments.CreateMoments(r.Context(), bucketID, userID, req.Window, req.Moments)
	if err != nil {
		log.WithError(err).Warn("Failed to create moments")
		httpx.Fail(w, err)
		return
	}

	log.WithFields(log.Fields{
		"bucketID": bucketID.Hex(),
		"count":    len(moments),
	}).Info("Moments created successfully")
	httpx.OK(w, http.StatusCreated, "moments created", map[string]interface{}{
		"bucket":  bucket,
		"moments": moments,
	})
}

// GetMomentsHandler lists a bucket's moments.
func (h *BucketHandler) GetMomentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}
	bucketID, err := bucketIDFromPath(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid bucket id"))
		return
	}

	moments, err := h.Moments.GetMoments(r.Context(), bucketID, userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "moments fetched", map[string]interface{}{
		"moments": moments,
	})
}
