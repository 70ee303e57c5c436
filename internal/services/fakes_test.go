package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"tuteur-backend/internal/models"
)

var errTransport = errors.New("connection refused")

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

type fakeBackend struct {
	mu           sync.Mutex
	uploads      []string
	uploadMIME   []string
	uploadErr    error
	startCalls   int
	startHistory []models.Turn
	startErr     error
	chat         *fakeChat
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{chat: &fakeChat{reply: "Réponse du cours."}}
}

func (b *fakeBackend) UploadDocument(_ context.Context, displayName, mimeType string, r io.Reader) (models.DocumentHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.uploadErr != nil {
		return models.DocumentHandle{}, b.uploadErr
	}
	if _, err := io.ReadAll(r); err != nil {
		return models.DocumentHandle{}, err
	}
	b.uploads = append(b.uploads, displayName)
	b.uploadMIME = append(b.uploadMIME, mimeType)
	return models.DocumentHandle{
		Name:        "files/" + displayName,
		URI:         "https://files.example/" + displayName,
		MIMEType:    mimeType,
		DisplayName: displayName,
	}, nil
}

func (b *fakeBackend) StartSession(_ context.Context, history []models.Turn) (ChatSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.startCalls++
	if b.startErr != nil {
		return nil, b.startErr
	}
	b.startHistory = append([]models.Turn(nil), history...)
	return b.chat, nil
}

func (b *fakeBackend) uploadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

type fakeChat struct {
	mu    sync.Mutex
	sent  [][]models.Part
	reply string
	err   error
}

func (c *fakeChat) Send(_ context.Context, parts []models.Part) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return "", c.err
	}
	c.sent = append(c.sent, parts)
	return c.reply, nil
}

func (c *fakeChat) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeSynthesizer struct {
	texts []string
	langs []string
	err   error
}

func (s *fakeSynthesizer) Synthesize(_ context.Context, text, language string) (*models.SpeechClip, error) {
	s.texts = append(s.texts, text)
	s.langs = append(s.langs, language)
	if s.err != nil {
		return nil, s.err
	}
	return &models.SpeechClip{MIMEType: "audio/mpeg", Data: []byte("ID3fake")}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.WSMessage
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, msg models.WSMessage) {
	n.mu.Lock()
	n.events = append(n.events, msg)
	n.mu.Unlock()
}

// writeCourse creates course files in a temp dir and returns the glob for them.
func writeCourse(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4 test"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return filepath.Join(dir, "*.pdf")
}

func newTestLibrary(backend Backend, pattern string) *DocumentLibrary {
	lib := NewDocumentLibrary(backend, pattern, testLogger())
	lib.inspect = func(string) (int, error) { return 1, nil }
	return lib
}
