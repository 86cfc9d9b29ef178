package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slidecast/engine/internal/apperr"
	"github.com/slidecast/engine/internal/logger"
)

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeAppError maps an application error onto its HTTP status.
func writeAppError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)

	status := http.StatusBadRequest
	switch code {
	case apperr.CodeJobNotFound:
		status = http.StatusNotFound
	case apperr.CodeTooManyJobs:
		status = http.StatusTooManyRequests
	case "":
		code = "INTERNAL_ERROR"
		status = http.StatusInternalServerError
	}

	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	writeError(w, status, code, message)
}
