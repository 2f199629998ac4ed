package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/momentum-app/momentum-server/pkg/apperr"
	"github.com/sirupsen/logrus"
)

// errorBody is the stable error envelope: {success:false, error:{code,message}}.
type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON writes an arbitrary payload with the given status.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Error("Failed to encode response")
	}
}

// OK writes a success envelope. Extra fields are merged into the top
// level next to "success" and "message", matching the mobile client's
// expectations.
func OK(w http.ResponseWriter, status int, message string, fields map[string]interface{}) {
	body := map[string]interface{}{
		"success": true,
		"message": message,
	}
	for k, v := range fields {
		body[k] = v
	}
	JSON(w, status, body)
}

// Fail maps a service error to the error envelope. Non-domain errors
// surface as a generic 500 without storage-layer detail.
func Fail(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	JSON(w, status, errorBody{
		Success: false,
		Error: errorDetail{
			Code:    status,
			Message: apperr.MessageOf(err),
		},
	})
}
