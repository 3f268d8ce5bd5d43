package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/domain"
)

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes data as a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteData wraps data in the {"data": ..., "metadata": {"timestamp": ...}} envelope
func WriteData(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	WriteJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}, log)
}

// StatusFor maps an error kind to an HTTP status
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindData, domain.KindOptimization:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as an error response. Unclassified errors are logged
// and their message is not exposed.
func WriteError(w http.ResponseWriter, err error, log zerolog.Logger) {
	status := StatusFor(err)
	body := ErrorBody{Kind: "internal", Message: "internal error"}

	var e *domain.Error
	if errors.As(err, &e) && status != http.StatusInternalServerError {
		body = ErrorBody{Kind: string(e.Kind), Message: e.Message(), Field: e.Field}
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	} else {
		log.Error().Err(err).Msg("Request failed")
	}

	WriteJSON(w, status, ErrorResponse{Error: body}, log)
}

// BadRequest writes a validation error for a malformed request body or parameter
func BadRequest(w http.ResponseWriter, field, message string, log zerolog.Logger) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
		Kind:    string(domain.KindValidation),
		Message: message,
		Field:   field,
	}}, log)
}
