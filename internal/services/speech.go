package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"tuteur-backend/internal/models"
)

// maxSynthesisBytes stays under the 5000 byte input limit of the TTS API.
const maxSynthesisBytes = 4500

var defaultRegions = map[string]string{
	"fr": "fr-FR",
	"en": "en-US",
	"es": "es-ES",
	"de": "de-DE",
	"pt": "pt-BR",
}

type SpeechService struct {
	svc   *texttospeech.Service
	voice string
}

func NewSpeechService(ctx context.Context, apiKey, voice string) (*SpeechService, error) {
	svc, err := texttospeech.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}
	return &SpeechService{svc: svc, voice: voice}, nil
}

// Synthesize returns MP3 audio for text. Long replies are split on sentence
// boundaries and the MP3 segments concatenated.
func (s *SpeechService) Synthesize(ctx context.Context, text, language string) (*models.SpeechClip, error) {
	chunks := splitForSynthesis(text, maxSynthesisBytes)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	voice := &texttospeech.VoiceSelectionParams{LanguageCode: languageCode(language)}
	if s.voice != "" {
		voice.Name = s.voice
	}

	var audio bytes.Buffer
	for _, chunk := range chunks {
		resp, err := s.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
			Input:       &texttospeech.SynthesisInput{Text: chunk},
			Voice:       voice,
			AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
		}).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("text-to-speech error: %w", err)
		}

		data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
		if err != nil {
			return nil, fmt.Errorf("failed to decode synthesized audio: %w", err)
		}
		audio.Write(data)
	}

	return &models.SpeechClip{MIMEType: "audio/mpeg", Data: audio.Bytes()}, nil
}

func languageCode(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "fr-FR"
	}
	if strings.Contains(lang, "-") {
		return lang
	}
	if region, ok := defaultRegions[strings.ToLower(lang)]; ok {
		return region
	}
	return lang
}

// splitForSynthesis cuts text into pieces of at most limit bytes, preferring
// paragraph, then sentence, then word boundaries.
func splitForSynthesis(text string, limit int) []string {
	text = strings.TrimSpace(text)
	var chunks []string

	for len(text) > limit {
		cut := lastBoundary(text, limit)
		chunk := strings.TrimSpace(text[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func lastBoundary(text string, limit int) int {
	window := text[:limit]
	for _, sep := range []string{"\n\n", ". ", "! ", "? ", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > 0 && (sep == " " || i >= limit/2) {
			return i + len(sep)
		}
	}
	// No separator: cut on a rune boundary.
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}
