package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/api"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, log zerolog.Logger, status int, message string, details string) {
	writeJSON(w, log, status, api.ErrorResponse{
		Error: message,
		Code:  http.StatusText(status),
		Details: map[string]any{
			"details": details,
		},
	})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
