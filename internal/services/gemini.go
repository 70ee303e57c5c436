package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"tuteur-backend/internal/models"
)

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	log      logrus.FieldLogger
	rateChan chan struct{} // Token bucket
}

type GeminiOptions struct {
	APIKey         string
	Model          string
	SystemPrompt   string
	Temperature    float32
	ConcurrentReqs int
}

func NewGeminiService(opts GeminiOptions, log logrus.FieldLogger) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)
	model.SetTemperature(opts.Temperature)
	model.SetTopP(0.95)
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(opts.SystemPrompt))
	}

	concurrentReqs := opts.ConcurrentReqs
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		log:      log,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// UploadDocument sends a file to the Gemini File API and waits until it can be
// referenced from a prompt.
func (s *GeminiService) UploadDocument(ctx context.Context, displayName, mimeType string, r io.Reader) (models.DocumentHandle, error) {
	if err := s.acquireRate(ctx); err != nil {
		return models.DocumentHandle{}, err
	}
	defer s.releaseRate()

	file, err := s.client.UploadFile(ctx, "", r, &genai.UploadFileOptions{
		DisplayName: displayName,
		MIMEType:    mimeType,
	})
	if err != nil {
		return models.DocumentHandle{}, fmt.Errorf("failed to upload %s to Gemini: %w", displayName, err)
	}

	// Wait until file is active
	for i := 0; i < 30 && file.State != genai.FileStateActive; i++ {
		if file.State == genai.FileStateFailed {
			return models.DocumentHandle{}, fmt.Errorf("Gemini failed to process %s", displayName)
		}

		select {
		case <-ctx.Done():
			return models.DocumentHandle{}, ctx.Err()
		case <-time.After(2 * time.Second):
		}

		current, getErr := s.client.GetFile(ctx, file.Name)
		if getErr != nil {
			return models.DocumentHandle{}, fmt.Errorf("failed to get uploaded file status: %w", getErr)
		}
		file = current
	}

	if file.State != genai.FileStateActive {
		return models.DocumentHandle{}, fmt.Errorf("%s did not become active in time", displayName)
	}

	s.log.WithFields(logrus.Fields{"file": displayName, "name": file.Name}).Debug("Uploaded file to Gemini")

	return models.DocumentHandle{
		Name:        file.Name,
		URI:         file.URI,
		MIMEType:    file.MIMEType,
		DisplayName: displayName,
	}, nil
}

// StartSession opens a chat whose history is pre-seeded. Nothing is sent until
// the first message.
func (s *GeminiService) StartSession(_ context.Context, history []models.Turn) (ChatSession, error) {
	cs := s.model.StartChat()
	cs.History = make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		cs.History = append(cs.History, toContent(turn))
	}
	return &geminiChat{svc: s, cs: cs}, nil
}

type geminiChat struct {
	svc *GeminiService
	cs  *genai.ChatSession
}

func (c *geminiChat) Send(ctx context.Context, parts []models.Part) (string, error) {
	if err := c.svc.acquireRate(ctx); err != nil {
		return "", err
	}
	defer c.svc.releaseRate()

	n := len(c.cs.History)
	resp, err := c.cs.SendMessage(ctx, toParts(parts)...)
	if err != nil {
		rollbackHistory(c.cs, n)
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			c.svc.log.Warnf("Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		rollbackHistory(c.cs, n)
		return "", fmt.Errorf("Gemini returned an empty reply")
	}
	return text, nil
}

// rollbackHistory trims cs back to its first n turns. SendMessage records the
// user content before calling the API, so an unanswered send would otherwise
// leave a dangling user turn that a resubmission stacks on.
func rollbackHistory(cs *genai.ChatSession, n int) {
	if n < 0 {
		n = 0
	}
	if n < len(cs.History) {
		cs.History = cs.History[:n]
	}
}

// Helper functions

func toContent(turn models.Turn) *genai.Content {
	role := "user"
	if turn.Role == models.RoleAssistant {
		role = "model"
	}
	return &genai.Content{Role: role, Parts: toParts(turn.Parts)}
}

func toParts(parts []models.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Document != nil {
			out = append(out, genai.FileData{MIMEType: p.Document.MIMEType, URI: p.Document.URI})
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
