package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/momentum-app/momentum-server/internal/config"
	"github.com/momentum-app/momentum-server/internal/services"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/httpx"
	jwtutil "github.com/momentum-app/momentum-server/pkg/jwt"
	log "github.com/sirupsen/logrus"
)

// UserHandler handles HTTP requests related to accounts.
type UserHandler struct {
	Service *services.UserService
	Config  *config.Config
}

// NewUserHandler creates a new instance of UserHandler.
func NewUserHandler(service *services.UserService, cfg *config.Config) *UserHandler {
	return &UserHandler{
		Service: service,
		Config:  cfg,
	}
}

// RegisterUserHandler handles user registration.
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("RegisterUserHandler called")
	var req struct {
		Nickname string `json:"nickname"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Warn("Failed to decode registration request")
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}

	user, err := h.Service.RegisterUser(r.Context(), req.Nickname, req.Email, req.Password)
	if err != nil {
		log.WithError(err).Warn("Failed to register user")
		httpx.Fail(w, err)
		return
	}

	httpx.OK(w, http.StatusCreated, "account created", map[string]interface{}{
		"user": user,
	})
}

// LoginUserHandler handles user login and issues the JWT.
func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("LoginUserHandler called")
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		log.WithError(err).Warn("Failed to decode login request")
		httpx.Fail(w, apperr.New(apperr.KindValidation, "invalid request payload"))
		return
	}

	user, err := h.Service.AuthenticateUser(r.Context(), credentials.Email, credentials.Password)
	if err != nil {
		log.WithField("email", credentials.Email).Warn("Authentication failed")
		httpx.Fail(w, err)
		return
	}

	token, err := jwtutil.GenerateToken(user.ID.Hex(), user.Email, h.Config.JWTSecret, h.Config.TokenExpiry)
	if err != nil {
		log.WithError(err).Error("Failed to generate JWT token")
		httpx.Fail(w, apperr.Wrap(apperr.KindInternal, "failed to generate token", err))
		return
	}

	log.WithField("userID", user.ID.Hex()).Info("User logged in successfully")
	httpx.OK(w, http.StatusOK, "logged in", map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// VerifyEmailHandler confirms a signup verification token.
func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.Fail(w, apperr.New(apperr.KindValidation, "verification token is required"))
		return
	}

	if err := h.Service.VerifyEmail(r.Context(), token); err != nil {
		log.WithError(err).Warn("Email verification failed")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "email verified", nil)
}

// GetMeHandler returns the authenticated account.
func (h *UserHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.Service.GetUser(r.Context(), userID)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "profile fetched", map[string]interface{}{
		"user": user,
	})
}

// UpdateMeHandler updates the nickname and optionally the profile image.
// Accepts multipart form data with "nickname" and "photo" parts.
func (h *UserHandler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("UpdateMeHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
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

	user, err := h.Service.UpdateProfile(r.Context(), userID, r.FormValue("nickname"), photo)
	if err != nil {
		log.WithError(err).Warn("Failed to update profile")
		httpx.Fail(w, err)
		return
	}

	log.WithField("userID", user.ID.Hex()).Info("User updated successfully")
	httpx.OK(w, http.StatusOK, "profile updated", map[string]interface{}{
		"user": user,
	})
}

// DeleteMeHandler deletes the account and everything it owns.
func (h *UserHandler) DeleteMeHandler(w http.ResponseWriter, r *http.Request) {
	log.Info("DeleteMeHandler called")
	userID, _, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteAccount(r.Context(), userID); err != nil {
		log.WithError(err).Error("Failed to delete account")
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "account deleted", nil)
}
