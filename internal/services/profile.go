package services

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Abbreviation is a literal expansion applied before speech synthesis.
type Abbreviation struct {
	From string
	To   string
}

// Profile holds everything that differs between tutor deployments: prompts,
// speech language and which features are switched on.
type Profile struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Model string `json:"model"`

	SystemPrompt     string `json:"-"`
	Acknowledgment   string `json:"-"`
	AudioInstruction string `json:"-"`
	AudioPlaceholder string `json:"-"`
	QuizInstruction  string `json:"-"`

	Language      string         `json:"language"`
	PageWord      string         `json:"-"`
	Abbreviations []Abbreviation `json:"-"`

	SpeechToggle       bool `json:"speech_toggle"`
	SpeechDefault      bool `json:"speech_default"`
	SpeechOnAudioInput bool `json:"speech_on_audio_input"`
	QuizEnabled        bool `json:"quiz_enabled"`
	AudioInputEnabled  bool `json:"audio_input_enabled"`
}

// ProfileOverrides replaces profile fields that are set.
type ProfileOverrides struct {
	Model              string
	SystemPromptFile   string
	SpeechToggle       *bool
	SpeechOnAudioInput *bool
	QuizEnabled        *bool
	AudioInputEnabled  *bool
}

const droitSystemPrompt = `
CONTEXTE ET RÔLE :
Tu es l'assistant pédagogique virtuel expert en Droit Administratif du Professeur Coulibaly.
Ta base de connaissances est STRICTEMENT limitée aux documents fournis en contexte ("le cours du professeur Coulibaly").

RÈGLES ABSOLUES :
1. SOURCE UNIQUE : Tes réponses doivent provenir EXCLUSIVEMENT du cours fourni. N'utilise jamais tes connaissances externes pour combler un vide.
2. HONNÊTETÉ : Si la réponse n'est pas dans le cours, dis : "Cette précision ne figure pas dans le cours du Pr. Coulibaly." Ne tente pas d'inventer.
3. PRÉCISION : Cite toujours les arrêts (ex: **CE, 1933, Benjamin**) tels qu'ils apparaissent dans le document.

STYLE ET FORMAT :
- Ton : Professionnel, pédagogique, encourageant.
- Oralité : Fais des phrases courtes et claires.
- Structure : Utilise des titres, des listes à puces et du gras pour les mots-clés.
`

const generalSystemPrompt = `
You are a teaching assistant for the course material provided in context.
Answer ONLY from that material. If the answer is not in the material, say so plainly and do not invent.
Keep sentences short and clear. Use headings, bullet lists and bold for key terms.
`

var builtinProfiles = map[string]Profile{
	"droit": {
		Name:               "droit",
		Title:              "Assistant Droit Administratif",
		Model:              "gemini-2.5-flash-lite",
		SystemPrompt:       droitSystemPrompt,
		Acknowledgment:     "Bien reçu. Je suis prêt.",
		AudioInstruction:   "Réponds à la question posée dans cet enregistrement audio.",
		AudioPlaceholder:   "🎤 (Question vocale)",
		QuizInstruction:    "Pose-moi une question de vérification sur un point au hasard du cours. Ne donne pas la réponse.",
		Language:           "fr",
		PageWord:           "page",
		Abbreviations:      []Abbreviation{{From: "Pr.", To: "Professeur"}},
		SpeechToggle:       true,
		SpeechDefault:      false,
		SpeechOnAudioInput: false,
		QuizEnabled:        true,
		AudioInputEnabled:  true,
	},
	"general": {
		Name:               "general",
		Title:              "Course Assistant",
		Model:              "gemini-2.5-flash-lite",
		SystemPrompt:       generalSystemPrompt,
		Acknowledgment:     "Received. I am ready.",
		AudioInstruction:   "Answer the question asked in this audio recording.",
		AudioPlaceholder:   "🎤 (Voice question)",
		QuizInstruction:    "Ask me one verification question on a random point of the material. Do not reveal the answer.",
		Language:           "en",
		PageWord:           "page",
		Abbreviations:      []Abbreviation{{From: "Prof.", To: "Professor"}, {From: "Dr.", To: "Doctor"}},
		SpeechToggle:       true,
		SpeechDefault:      false,
		SpeechOnAudioInput: true,
		QuizEnabled:        true,
		AudioInputEnabled:  true,
	},
}

// LookupProfile returns a copy of a built-in profile.
func LookupProfile(name string) (Profile, error) {
	p, ok := builtinProfiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown tutor profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	p.Abbreviations = append([]Abbreviation(nil), p.Abbreviations...)
	return p, nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns p with the set overrides applied.
func (p Profile) Apply(o ProfileOverrides) (Profile, error) {
	if o.Model != "" {
		p.Model = o.Model
	}
	if o.SystemPromptFile != "" {
		b, err := os.ReadFile(o.SystemPromptFile)
		if err != nil {
			return p, fmt.Errorf("failed to read system prompt: %w", err)
		}
		if strings.TrimSpace(string(b)) == "" {
			return p, fmt.Errorf("system prompt file %s is empty", o.SystemPromptFile)
		}
		p.SystemPrompt = string(b)
	}
	if o.SpeechToggle != nil {
		p.SpeechToggle = *o.SpeechToggle
	}
	if o.SpeechOnAudioInput != nil {
		p.SpeechOnAudioInput = *o.SpeechOnAudioInput
	}
	if o.QuizEnabled != nil {
		p.QuizEnabled = *o.QuizEnabled
	}
	if o.AudioInputEnabled != nil {
		p.AudioInputEnabled = *o.AudioInputEnabled
	}
	return p, nil
}

// speaks reports whether a reply to the given input should be voiced.
func (p Profile) speaks(toggleOn bool, kind inputSource) bool {
	if p.SpeechToggle && toggleOn {
		return true
	}
	return kind == sourceAudio && p.SpeechOnAudioInput
}
