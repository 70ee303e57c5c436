package services

import (
	"regexp"
	"strings"
)

var (
	markupPattern  = regexp.MustCompile(`[\*#]`)
	pageRefPattern = regexp.MustCompile(`\bp\.\s*(\d+)`)
	spacesPattern  = regexp.MustCompile(`[ \t]{2,}`)
)

// SpeakableText strips emphasis and heading markup from a model reply and
// expands abbreviations a speech engine would read letter by letter.
func SpeakableText(text, pageWord string, abbreviations []Abbreviation) string {
	if pageWord == "" {
		pageWord = "page"
	}

	out := markupPattern.ReplaceAllString(text, "")
	out = pageRefPattern.ReplaceAllString(out, pageWord+" $1")

	for _, a := range abbreviations {
		if a.From == "" {
			continue
		}
		out = strings.ReplaceAll(out, a.From, a.To)
	}

	out = spacesPattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func (p Profile) speakable(text string) string {
	return SpeakableText(text, p.PageWord, p.Abbreviations)
}
