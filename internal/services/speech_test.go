package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitForSynthesis(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		got := splitForSynthesis("  Bonjour.  ", 100)
		if len(got) != 1 || got[0] != "Bonjour." {
			t.Fatalf("unexpected chunks: %q", got)
		}
	})

	t.Run("empty text has no chunks", func(t *testing.T) {
		if got := splitForSynthesis("   ", 100); len(got) != 0 {
			t.Fatalf("expected no chunks, got %q", got)
		}
	})

	t.Run("splits on sentences within limit", func(t *testing.T) {
		text := strings.Repeat("Le juge administratif contrôle l'acte. ", 40)
		chunks := splitForSynthesis(text, 200)
		if len(chunks) < 2 {
			t.Fatalf("expected several chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if len(c) > 200 {
				t.Fatalf("chunk %d exceeds limit: %d bytes", i, len(c))
			}
			if !strings.HasSuffix(c, ".") {
				t.Fatalf("chunk %d does not end on a sentence: %q", i, c)
			}
		}
	})

	t.Run("never splits a rune", func(t *testing.T) {
		text := strings.Repeat("é", 300)
		for i, c := range splitForSynthesis(text, 101) {
			if !utf8.ValidString(c) {
				t.Fatalf("chunk %d is not valid utf-8", i)
			}
			if len(c) > 101 {
				t.Fatalf("chunk %d exceeds limit", i)
			}
		}
	})
}

func TestLanguageCode(t *testing.T) {
	tests := []struct {
		in, expected string
	}{
		{"fr", "fr-FR"},
		{"EN", "en-US"},
		{"fr-CA", "fr-CA"},
		{"", "fr-FR"},
		{"it", "it"},
	}
	for _, tc := range tests {
		if got := languageCode(tc.in); got != tc.expected {
			t.Errorf("languageCode(%q): expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}
