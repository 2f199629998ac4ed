package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/momentum-app/momentum-server/pkg/email"
	"github.com/momentum-app/momentum-server/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// UserService encapsulates account logic: signup, login, profile and
// account deletion cascades.
type UserService struct {
	users         UserStore
	buckets       BucketStore
	moments       MomentStore
	friends       FriendStore
	notifications NotificationStore
	uploader      storage.Uploader
	baseURL       string
}

// NewUserService creates a new instance of UserService.
func NewUserService(users UserStore, buckets BucketStore, moments MomentStore, friends FriendStore, notifications NotificationStore, uploader storage.Uploader, baseURL string) *UserService {
	return &UserService{
		users:         users,
		buckets:       buckets,
		moments:       moments,
		friends:       friends,
		notifications: notifications,
		uploader:      uploader,
		baseURL:       baseURL,
	}
}

// RegisterUser creates an account, assigns a unique friend code and
// sends the verification mail.
func (s *UserService) RegisterUser(ctx context.Context, nickname, emailAddr, password string) (*models.User, error) {
	if nickname == "" || emailAddr == "" || password == "" {
		return nil, apperr.New(apperr.KindValidation, "nickname, email and password are required")
	}
	if !emailRegex.MatchString(emailAddr) {
		return nil, apperr.New(apperr.KindValidation, "invalid email format")
	}

	if existing, _ := s.users.GetUserByEmail(ctx, emailAddr); existing != nil {
		return nil, apperr.New(apperr.KindConflict, "email already in use")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}

	code, err := s.generateFriendCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		Nickname:       nickname,
		Email:          emailAddr,
		HashedPassword: string(hashed),
		FriendCode:     code,
		VerifyToken:    uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to register user", err)
	}

	verificationLink := fmt.Sprintf("%s/users/verify?token=%s", s.baseURL, user.VerifyToken)
	body := fmt.Sprintf("Welcome to Momentum!\n\nPlease verify your email by clicking the link below:\n%s", verificationLink)
	if err := email.SendEmail(created.Email, "Email Verification", body); err != nil {
		logrus.WithError(err).Warn("Failed to send verification email")
	}

	logrus.WithField("userID", created.ID.Hex()).Info("User registered successfully")
	return created, nil
}

// generateFriendCode produces a short unique code friends can add each
// other by.
func (s *UserService) generateFriendCode(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		existing, err := s.users.GetUserByFriendCode(ctx, code)
		if err == mongo.ErrNoDocuments || (err == nil && existing == nil) {
			return code, nil
		}
		if err != nil && err != mongo.ErrNoDocuments {
			return "", apperr.Wrap(apperr.KindInternal, "failed to check friend code", err)
		}
	}
	return "", apperr.New(apperr.KindInternal, "failed to generate a unique friend code")
}

// AuthenticateUser verifies credentials and returns the account.
func (s *UserService) AuthenticateUser(ctx context.Context, emailAddr, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid email or password")
	}
	return user, nil
}

// VerifyEmail confirms a signup token.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.users.GetUserByVerificationToken(ctx, token)
	if err != nil {
		return apperr.New(apperr.KindNotFound, "invalid or expired verification token")
	}

	update := map[string]interface{}{
		"is_verified":  true,
		"verify_token": "",
	}
	if _, err := s.users.UpdateUser(ctx, user.ID, update); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to update verification status", err)
	}
	return nil
}

// GetUser fetches an account by ID.
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch user", err)
	}
	return user, nil
}

// UpdateProfile changes the nickname and optionally replaces the profile
// image.
func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, nickname string, photo *PhotoUpload) (*models.User, error) {
	update := map[string]interface{}{}
	if nickname != "" {
		update["nickname"] = nickname
	}

	if photo != nil {
		key := fmt.Sprintf("profiles/%s/%s", id.Hex(), uuid.NewString())
		photoURL, err := s.uploader.Upload(ctx, key, photo.ContentType, photo.Body)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to store profile image", err)
		}
		update["profile_image_url"] = photoURL
	}

	if len(update) == 0 {
		return nil, apperr.New(apperr.KindValidation, "nothing to update")
	}

	user, err := s.users.UpdateUser(ctx, id, update)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update profile", err)
	}
	return user, nil
}

// DeleteAccount removes the user and cascades to everything they own.
func (s *UserService) DeleteAccount(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	if err := s.moments.DeleteByUser(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete moments", err)
	}
	if err := s.buckets.DeleteByUser(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete buckets", err)
	}
	if err := s.friends.DeleteByUser(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete friend links", err)
	}
	if err := s.notifications.DeleteByUser(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete notifications", err)
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete user", err)
	}

	logrus.WithField("userID", id.Hex()).Info("Account deleted with cascade")
	return nil
}
