package handlers

import (
	"net/http"

	"github.com/momentum-app/momentum-server/internal/services"
	jwtutil "github.com/momentum-app/momentum-server/pkg/jwt"
	"github.com/momentum-app/momentum-server/pkg/middleware"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxUploadBytes = 10 << 20

// requireUser pulls the authenticated user out of the request context.
// Returns a zero ID and false after writing a 401 when there is none.
func requireUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, *jwtutil.Claims, bool) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		log.Warn("Unauthorized request")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return primitive.NilObjectID, nil, false
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		log.WithField("userID", claims.UserID).Warn("Malformed user ID in token")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return primitive.NilObjectID, nil, false
	}
	return userID, claims, true
}

// formPhoto extracts an optional "photo" part from a multipart request.
// The caller must close the returned body. A missing part is not an
// error; nil is returned instead.
func formPhoto(r *http.Request) (*services.PhotoUpload, func(), error) {
	file, header, err := r.FormFile("photo")
	if err == http.ErrMissingFile {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return &services.PhotoUpload{
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, func() { file.Close() }, nil
}
