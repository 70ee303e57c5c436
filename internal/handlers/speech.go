package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tuteur-backend/internal/services"
)

type SpeechHandler struct {
	clips services.ClipStore
}

func NewSpeechHandler(clips services.ClipStore) *SpeechHandler {
	return &SpeechHandler{clips: clips}
}

// Fetch streams a synthesized clip once. The clip is gone afterwards.
func (h *SpeechHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	clip, err := h.clips.Take(r.Context(), chi.URLParam(r, "clipID"))
	if err != nil {
		if errors.Is(err, services.ErrClipNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Audio clip not found or already played", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load audio clip", r))
		return
	}

	w.Header().Set("Content-Type", clip.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(clip.Data)
}
