package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tuteur-backend/internal/models"
	"tuteur-backend/internal/services"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var disabled *services.FeatureDisabledError

	switch {
	case errors.Is(err, services.ErrNoReferenceDocuments):
		writeJSON(w, http.StatusServiceUnavailable, errorResp("NO_REFERENCE_DOCUMENTS", "No course documents are available", r))
	case errors.Is(err, services.ErrInvalidAudioInput):
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_AUDIO", "Audio must be a non-empty recording in a supported format", r))
	case errors.Is(err, services.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
	case errors.As(err, &disabled):
		writeJSON(w, http.StatusForbidden, errorResp("FEATURE_DISABLED", disabled.Error(), r))
	case errors.Is(err, services.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
	case errors.Is(err, services.ErrBackendUnavailable):
		writeJSON(w, http.StatusBadGateway, errorResp("BACKEND_UNAVAILABLE", "The tutor is unreachable, please resubmit", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
