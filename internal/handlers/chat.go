package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"tuteur-backend/internal/models"
	"tuteur-backend/internal/services"
)

const maxAudioBytes = 20 << 20

type ChatHandler struct {
	tutor    *services.TutorService
	sessions *services.SessionStore
	clips    services.ClipStore
	log      logrus.FieldLogger
}

func NewChatHandler(tutor *services.TutorService, sessions *services.SessionStore, clips services.ClipStore, log logrus.FieldLogger) *ChatHandler {
	return &ChatHandler{
		tutor:    tutor,
		sessions: sessions,
		clips:    clips,
		log:      log,
	}
}

func (h *ChatHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	h.submit(w, r, models.TextInput(req.Message))
}

// AskByVoice accepts a recording either as the "audio" multipart field or as
// the raw request body.
func (h *ChatHandler) AskByVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)

	audio, err := readAudio(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("VALIDATION_ERROR", "Audio recording is too large", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid audio upload", r))
		return
	}

	h.submit(w, r, models.AudioInput(audio))
}

func (h *ChatHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	reply, err := h.tutor.RequestQuiz(r.Context(), sess)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.response(r, sess, reply))
}

func (h *ChatHandler) submit(w http.ResponseWriter, r *http.Request, input models.TurnInput) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	reply, err := h.tutor.Submit(r.Context(), sess, input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.response(r, sess, reply))
}

// response parks synthesized speech in the clip store and links to it.
func (h *ChatHandler) response(r *http.Request, sess *services.Session, reply *models.Reply) models.ChatResponse {
	resp := models.ChatResponse{
		Reply:            reply.Text,
		SpeechWarning:    reply.SpeechWarning,
		TranscriptLength: len(sess.Transcript()),
	}

	if reply.Speech != nil {
		id, err := h.clips.Put(r.Context(), reply.Speech)
		if err != nil {
			h.log.WithError(err).WithField("session_id", sess.ID).Warn("Failed to store speech clip")
			resp.SpeechWarning = "Audio unavailable"
			return resp
		}
		resp.SpeechURL = "/api/v1/speech/" + id
	}
	return resp
}

func readAudio(r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("audio")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}
