package models

import "time"

// Role tags a turn in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DocumentHandle is an opaque reference to a file held by the model provider.
type DocumentHandle struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	MIMEType    string `json:"mime_type"`
	DisplayName string `json:"display_name"`
}

// Part is one element of a turn payload: either text or a document reference.
type Part struct {
	Text     string          `json:"text,omitempty"`
	Document *DocumentHandle `json:"document,omitempty"`
}

func TextPart(s string) Part { return Part{Text: s} }

func DocumentPart(d DocumentHandle) Part { return Part{Document: &d} }

// Turn is one role-tagged message in the backend conversation.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// TranscriptEntry is what the user sees for a turn.
type TranscriptEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// InputKind discriminates TurnInput.
type InputKind int

const (
	InputText InputKind = iota
	InputAudio
)

// TurnInput is either a text question or a recorded audio clip.
type TurnInput struct {
	Kind  InputKind
	Text  string
	Audio []byte
}

func TextInput(s string) TurnInput { return TurnInput{Kind: InputText, Text: s} }

func AudioInput(b []byte) TurnInput { return TurnInput{Kind: InputAudio, Audio: b} }

// SpeechClip is synthesized audio for a reply.
type SpeechClip struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Reply is the outcome of a successful Submit or RequestQuiz.
type Reply struct {
	Text          string
	Speech        *SpeechClip
	SpeechWarning string
}

// ChatRequest is the payload sent to the messages endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// SpeechToggleRequest switches the persistent speech toggle.
type SpeechToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// ChatResponse is the reply from the tutor.
type ChatResponse struct {
	Reply            string `json:"reply"`
	SpeechURL        string `json:"speech_url,omitempty"`
	SpeechWarning    string `json:"speech_warning,omitempty"`
	TranscriptLength int    `json:"transcript_length"`
}

// SessionView is the public state of a conversation.
type SessionView struct {
	ID            string            `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	SpeechEnabled bool              `json:"speech_enabled"`
	Documents     int               `json:"documents"`
	Transcript    []TranscriptEntry `json:"transcript"`
}

// CreateSessionResponse carries the new session and its bearer token.
type CreateSessionResponse struct {
	Session   SessionView `json:"session"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}
