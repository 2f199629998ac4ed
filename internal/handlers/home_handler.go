package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/httpx"
	log "github.com/sirupsen/logrus"
)

// HomeHandler serves the home screen aggregations: streak, weekly grid
// and recent check-ins.
type HomeHandler struct {
	Service *services.HomeService
}

// NewHomeHandler creates a new instance of HomeHandler.
func NewHomeHandler(service *services.HomeService) *HomeHandler {
	return &HomeHandler{Service: service}
}

// refDate reads an optional ?date=2006-01-02 query parameter, defaulting
// to today in the server's location.
func refDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now(), nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.Local)
}

// GetHomeHandler returns the combined home view.
func (h *HomeHandler) GetHomeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	ref, err := refDate(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}

	limit := int64(0)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.ParseInt(raw, 10, 64); err != nil {
			httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid limit"))
			return
		}
	}

	streak, err := h.Service.ConsecutiveDays(r.Context(), userID, ref)
	if err != nil {
		log.WithError(err).Error("Failed to compute streak")
		httpx.Fail(w, err)
		return
	}
	week, err := h.Service.WeekSnapshot(r.Context(), userID, ref)
	if err != nil {
		log.WithError(err).Error("Failed to compute week snapshot")
		httpx.Fail(w, err)
		return
	}
	recent, err := h.Service.RecentMoments(r.Context(), userID, limit)
	if err != nil {
		httpx.Fail(w, err)
		return
	}

	httpx.OK(w, http.StatusOK, "home fetched", map[string]interface{}{
		"consecutive_days": streak,
		"week":             week,
		"recent_moments":   recent,
	})
}

// GetConsecutiveDaysHandler returns the user's current streak.
func (h *HomeHandler) GetConsecutiveDaysHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	ref, err := refDate(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}

	streak, err := h.Service.ConsecutiveDays(r.Context(), userID, ref)
	if err != nil {
		log.WithError(err).Error("Failed to compute streak")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "streak fetched", map[string]interface{}{
		"consecutive_days": streak,
	})
}

// GetWeekHandler returns the Monday-to-Sunday completion grid.
func (h *HomeHandler) GetWeekHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	ref, err := refDate(r)
	if err != nil {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid date, expected YYYY-MM-DD"))
		return
	}

	week, err := h.Service.WeekSnapshot(r.Context(), userID, ref)
	if err != nil {
		log.WithError(err).Error("Failed to compute week snapshot")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "week fetched", map[string]interface{}{
		"week": week,
	})
}
