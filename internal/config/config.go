package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel  string
	LogFormat string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int
	GeminiTemperature    float64

	// Speech synthesis
	TTSAPIKey     string
	TTSVoice      string
	SpeechClipTTL time.Duration

	// Tutor profile
	TutorProfile      string
	SystemPromptFile  string
	DocumentsGlob     string
	SpeechOnAudio     *bool
	SpeechToggle      *bool
	QuizEnabled       *bool
	AudioInputEnabled *bool

	// Redis (optional)
	RedisURL string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	apiKey := mustGetEnv("GEMINI_API_KEY")

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", ""),
		GeminiAPIKey:         apiKey,
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", ""),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		GeminiTemperature:    getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.3),
		TTSAPIKey:            getEnvOrDefault("TTS_API_KEY", apiKey),
		TTSVoice:             getEnvOrDefault("TTS_VOICE", ""),
		SpeechClipTTL:        getEnvAsDurationOrDefault("SPEECH_CLIP_TTL", 10*time.Minute),
		TutorProfile:         getEnvOrDefault("TUTOR_PROFILE", "droit"),
		SystemPromptFile:     getEnvOrDefault("SYSTEM_PROMPT_FILE", ""),
		DocumentsGlob:        getEnvOrDefault("DOCUMENTS_GLOB", "*.pdf"),
		SpeechOnAudio:        getEnvAsOptionalBool("SPEECH_ON_AUDIO_INPUT"),
		SpeechToggle:         getEnvAsOptionalBool("SPEECH_TOGGLE_ENABLED"),
		QuizEnabled:          getEnvAsOptionalBool("QUIZ_ENABLED"),
		AudioInputEnabled:    getEnvAsOptionalBool("AUDIO_INPUT_ENABLED"),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		SessionSecret:        getEnvOrDefault("SESSION_SECRET", ""),
		SessionTTL:           getEnvAsDurationOrDefault("SESSION_TTL", 12*time.Hour),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// IsProduction reports whether ENV selects the production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// getEnvAsOptionalBool returns nil when the key is unset or unparsable so the
// profile default applies.
func getEnvAsOptionalBool(key string) *bool {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}
	return &b
}
