// internal/server/handlers/respond.go

package handlers

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"streampulse/internal/domain/metric"
	"streampulse/internal/logging"
)

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}

	if err != nil && code >= 500 {
		logging.Error().Err(err).Int("code", code).Str("message", message).Msg("HTTP error")
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}

// errorStatus maps domain errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, metric.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, metric.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, metric.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError writes err with the status its kind maps to
func respondWithDomainError(w http.ResponseWriter, message string, err error) {
	code := errorStatus(err)
	if code < 500 {
		message = err.Error()
	}
	respondWithError(w, code, message, err)
}
