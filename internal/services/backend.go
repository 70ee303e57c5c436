package services

import (
	"context"
	"io"

	"tuteur-backend/internal/models"
)

// Backend is the slice of the model provider the tutor relies on.
type Backend interface {
	// UploadDocument stores a file with the provider and returns a handle
	// usable in later payloads.
	UploadDocument(ctx context.Context, displayName, mimeType string, r io.Reader) (models.DocumentHandle, error)
	// StartSession opens a conversation seeded with history.
	StartSession(ctx context.Context, history []models.Turn) (ChatSession, error)
}

// ChatSession is a provider-side conversation. Send appends the payload and the
// reply to the provider history only when it succeeds.
type ChatSession interface {
	Send(ctx context.Context, parts []models.Part) (string, error)
}

// Synthesizer converts text to playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) (*models.SpeechClip, error)
}

// Notifier receives progress events for a session. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, msg models.WSMessage)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, models.WSMessage) {}
