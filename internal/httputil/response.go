package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "photo-frame-portal/internal/errors"

	"github.com/rs/zerolog/log"
)

// ErrorBody is the payload of the "error" member of an error response
type ErrorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details any                 `json:"details,omitempty"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON sends data as a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// WriteError writes err with the status of its error code. Errors outside the
// taxonomy are logged and reported as INTERNAL_ERROR.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		log.Error().Err(err).Msg("Unhandled error")
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	WriteJSON(w, apperrors.HTTPStatus(appErr.Code), ErrorResponse{
		Error: ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// DecodeJSON reads a JSON request body into v
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.ValidationError("Invalid request body").WithCause(err)
	}
	return nil
}
