package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"tuteur-backend/internal/middleware"
	"tuteur-backend/internal/models"
	"tuteur-backend/internal/services"
)

type SessionHandler struct {
	tutor    *services.TutorService
	sessions *services.SessionStore
	auth     *middleware.SessionAuth
	log      logrus.FieldLogger
}

func NewSessionHandler(tutor *services.TutorService, sessions *services.SessionStore, auth *middleware.SessionAuth, log logrus.FieldLogger) *SessionHandler {
	return &SessionHandler{
		tutor:    tutor,
		sessions: sessions,
		auth:     auth,
		log:      log,
	}
}

// Profile describes which controls the client should render.
func (h *SessionHandler) Profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tutor.Profile())
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.tutor.Initialize(r.Context())
	if err != nil {
		h.log.WithError(err).Warn("Session initialization failed")
		handleServiceError(w, r, err)
		return
	}

	token, expires, err := h.auth.GenerateToken(sess.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue session token", r))
		return
	}

	h.sessions.Put(sess)

	writeJSON(w, http.StatusCreated, models.CreateSessionResponse{
		Session:   sess.View(),
		Token:     token,
		ExpiresAt: expires,
	})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (h *SessionHandler) SetSpeech(w http.ResponseWriter, r *http.Request) {
	if !h.tutor.Profile().SpeechToggle {
		handleServiceError(w, r, &services.FeatureDisabledError{Feature: "voice output"})
		return
	}

	var req models.SpeechToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	sess.SetSpeechEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"speech_enabled": req.Enabled})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session closed"})
}
