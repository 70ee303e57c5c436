package services

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tuteur-backend/internal/models"
)

type inputSource int

const (
	sourceText inputSource = iota
	sourceAudio
	sourceQuiz
)

// Session is one conversation bound to the reference documents. It is created
// Ready by TutorService.Initialize and owned by the caller.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.Mutex
	chat          ChatSession
	documents     int
	turns         []models.Turn
	transcript    []models.TranscriptEntry
	speechEnabled bool
}

// Turns returns a copy of the backend conversation, priming pair included.
func (s *Session) Turns() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.turns...)
}

// Transcript returns a copy of the display transcript.
func (s *Session) Transcript() []models.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TranscriptEntry(nil), s.transcript...)
}

func (s *Session) SpeechEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speechEnabled
}

func (s *Session) SetSpeechEnabled(on bool) {
	s.mu.Lock()
	s.speechEnabled = on
	s.mu.Unlock()
}

// View snapshots the session for API responses.
func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionView{
		ID:            s.ID,
		CreatedAt:     s.CreatedAt,
		SpeechEnabled: s.speechEnabled,
		Documents:     s.documents,
		Transcript:    append([]models.TranscriptEntry{}, s.transcript...),
	}
}

// TutorService routes user turns to the model and keeps each session's
// transcript in step with its backend conversation.
type TutorService struct {
	backend  Backend
	library  *DocumentLibrary
	speech   Synthesizer
	notifier Notifier
	profile  Profile
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewTutorService(backend Backend, library *DocumentLibrary, speech Synthesizer, notifier Notifier, profile Profile, log logrus.FieldLogger) *TutorService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &TutorService{
		backend:  backend,
		library:  library,
		speech:   speech,
		notifier: notifier,
		profile:  profile,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (t *TutorService) Profile() Profile { return t.profile }

// Initialize loads the reference documents and opens a primed conversation.
func (t *TutorService) Initialize(ctx context.Context) (*Session, error) {
	docs, err := t.library.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoReferenceDocuments
	}

	primer := models.Turn{Role: models.RoleUser, Parts: make([]models.Part, 0, len(docs))}
	for _, d := range docs {
		primer.Parts = append(primer.Parts, models.DocumentPart(d))
	}
	ack := models.Turn{Role: models.RoleAssistant, Parts: []models.Part{models.TextPart(t.profile.Acknowledgment)}}
	history := []models.Turn{primer, ack}

	chat, err := t.backend.StartSession(ctx, history)
	if err != nil {
		return nil, &BackendError{Op: "start session", Err: err}
	}

	sess := &Session{
		ID:            uuid.NewString(),
		CreatedAt:     t.now(),
		chat:          chat,
		documents:     len(docs),
		turns:         history,
		transcript:    []models.TranscriptEntry{},
		speechEnabled: t.profile.SpeechToggle && t.profile.SpeechDefault,
	}

	t.log.WithFields(logrus.Fields{"session_id": sess.ID, "documents": len(docs)}).Info("Session ready")
	return sess, nil
}

// Submit sends one user turn and returns the tutor's reply.
func (t *TutorService) Submit(ctx context.Context, sess *Session, input models.TurnInput) (*models.Reply, error) {
	switch input.Kind {
	case models.InputAudio:
		if !t.profile.AudioInputEnabled {
			return nil, &FeatureDisabledError{Feature: "audio input"}
		}
		mimeType, err := DetectAudio(input.Audio)
		if err != nil {
			return nil, err
		}
		return t.submitAudio(ctx, sess, input.Audio, mimeType)
	default:
		text := strings.TrimSpace(input.Text)
		if text == "" {
			return nil, ErrEmptyMessage
		}
		return t.exchange(ctx, sess, sourceText, input.Text, func(context.Context) ([]models.Part, error) {
			return []models.Part{models.TextPart(input.Text)}, nil
		})
	}
}

// RequestQuiz asks the tutor for a verification question. The instruction is
// sent but never shown in the transcript.
func (t *TutorService) RequestQuiz(ctx context.Context, sess *Session) (*models.Reply, error) {
	if !t.profile.QuizEnabled {
		return nil, &FeatureDisabledError{Feature: "quiz"}
	}
	return t.exchange(ctx, sess, sourceQuiz, "", func(context.Context) ([]models.Part, error) {
		return []models.Part{models.TextPart(t.profile.QuizInstruction)}, nil
	})
}

func (t *TutorService) submitAudio(ctx context.Context, sess *Session, audio []byte, mimeType string) (*models.Reply, error) {
	return t.exchange(ctx, sess, sourceAudio, t.profile.AudioPlaceholder, func(ctx context.Context) ([]models.Part, error) {
		clip, err := t.backend.UploadDocument(ctx, "question-"+uuid.NewString()[:8], mimeType, bytes.NewReader(audio))
		if err != nil {
			return nil, &BackendError{Op: "upload audio", Err: err}
		}
		return []models.Part{models.TextPart(t.profile.AudioInstruction), models.DocumentPart(clip)}, nil
	})
}

// exchange runs one turn under the session lock: record the visible user entry,
// build and send the payload, then record the reply on success.
func (t *TutorService) exchange(ctx context.Context, sess *Session, src inputSource, display string, build func(context.Context) ([]models.Part, error)) (*models.Reply, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if src != sourceQuiz {
		sess.transcript = append(sess.transcript, models.TranscriptEntry{
			Role:      models.RoleUser,
			Content:   display,
			CreatedAt: t.now(),
		})
	}

	t.status(ctx, sess.ID, 1, "Searching course material")

	parts, err := build(ctx)
	if err != nil {
		t.fail(ctx, sess.ID, err)
		return nil, err
	}

	text, err := sess.chat.Send(ctx, parts)
	if err != nil {
		berr := &BackendError{Op: "send message", Err: err}
		t.fail(ctx, sess.ID, berr)
		return nil, berr
	}

	sess.turns = append(sess.turns,
		models.Turn{Role: models.RoleUser, Parts: parts},
		models.Turn{Role: models.RoleAssistant, Parts: []models.Part{models.TextPart(text)}},
	)
	sess.transcript = append(sess.transcript, models.TranscriptEntry{
		Role:      models.RoleAssistant,
		Content:   text,
		CreatedAt: t.now(),
	})

	t.notifier.Notify(ctx, sess.ID, models.WSMessage{
		Type:    "reply",
		Payload: models.ReplyEvent{SessionID: sess.ID, Role: models.RoleAssistant, Content: text},
	})

	reply := &models.Reply{Text: text}
	if t.profile.speaks(sess.speechEnabled, src) {
		t.voice(ctx, sess.ID, reply)
	}
	return reply, nil
}

// voice attaches synthesized speech to reply. Failures only set a warning.
func (t *TutorService) voice(ctx context.Context, sessionID string, reply *models.Reply) {
	if t.speech == nil {
		reply.SpeechWarning = "Voice output is not configured"
		return
	}

	t.status(ctx, sessionID, 2, "Generating voice")

	clip, err := t.speech.Synthesize(ctx, t.profile.speakable(reply.Text), t.profile.Language)
	if err != nil {
		t.log.WithError(err).WithField("session_id", sessionID).Warn("Speech synthesis failed")
		reply.SpeechWarning = "Audio unavailable (" + err.Error() + ")"
		return
	}
	reply.Speech = clip
}

func (t *TutorService) status(ctx context.Context, sessionID string, step int, name string) {
	t.notifier.Notify(ctx, sessionID, models.WSMessage{
		Type:    "status_update",
		Payload: models.StatusUpdate{SessionID: sessionID, Step: step, StepName: name},
	})
}

func (t *TutorService) fail(ctx context.Context, sessionID string, err error) {
	t.log.WithError(err).WithField("session_id", sessionID).Error("Turn failed")
	t.notifier.Notify(ctx, sessionID, models.WSMessage{
		Type:    "error",
		Payload: models.ErrorEvent{SessionID: sessionID, ErrorCode: "BACKEND_UNAVAILABLE", ErrorMessage: err.Error()},
	})
}
