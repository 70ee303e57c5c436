package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tuteur-backend/internal/config"
	"tuteur-backend/internal/database"
	"tuteur-backend/internal/handlers"
	"tuteur-backend/internal/logger"
	"tuteur-backend/internal/middleware"
	"tuteur-backend/internal/router"
	"tuteur-backend/internal/services"
	"tuteur-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.IsProduction() || cfg.LogFormat == "json")
	log.Info("🚀 Starting tutor backend...")
	log.Info("✓ Environment variables loaded")

	// ──── Step 2: Resolve Tutor Profile ────
	base, err := services.LookupProfile(cfg.TutorProfile)
	if err != nil {
		log.WithError(err).WithField("available", services.ProfileNames()).Fatal("✗ Unknown tutor profile")
	}
	profile, err := base.Apply(services.ProfileOverrides{
		Model:              cfg.GeminiModel,
		SystemPromptFile:   cfg.SystemPromptFile,
		SpeechToggle:       cfg.SpeechToggle,
		SpeechOnAudioInput: cfg.SpeechOnAudio,
		QuizEnabled:        cfg.QuizEnabled,
		AudioInputEnabled:  cfg.AudioInputEnabled,
	})
	if err != nil {
		log.WithError(err).Fatal("✗ Tutor profile could not be configured")
	}
	log.WithFields(logrus.Fields{"profile": profile.Name, "model": profile.Model}).Info("✓ Tutor profile loaded")

	// ──── Step 3: Initialize Redis Clients (optional) ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("✗ Redis connection failed")
	}
	defer redisClients.Close()
	if redisClients != nil {
		log.Info("✓ Redis connected")
	} else {
		log.Info("• Redis not configured, using in-memory clip store")
	}

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(services.GeminiOptions{
		APIKey:         cfg.GeminiAPIKey,
		Model:          profile.Model,
		SystemPrompt:   profile.SystemPrompt,
		Temperature:    float32(cfg.GeminiTemperature),
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("✗ Gemini client initialization failed")
	}
	defer geminiService.Close()
	log.Info("✓ Gemini client initialized")

	// ──── Step 5: Initialize Speech Synthesis ────
	var synthesizer services.Synthesizer
	speechService, err := services.NewSpeechService(context.Background(), cfg.TTSAPIKey, cfg.TTSVoice)
	if err != nil {
		log.WithError(err).Warn("✗ Speech synthesis unavailable, replies will be text only")
	} else {
		synthesizer = speechService
		log.Info("✓ Speech synthesis initialized")
	}

	// ──── Initialize Sessions ────
	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn("SESSION_SECRET not set, tokens will not survive a restart")
	}
	sessionAuth := middleware.NewSessionAuth(secret, cfg.SessionTTL)
	sessions := services.NewSessionStore(cfg.SessionTTL, log)

	// ──── Step 6: Start WebSocket Hub ────
	var (
		clips    services.ClipStore
		notifier services.Notifier
		wsHub    *websocket.Hub
	)
	if redisClients != nil {
		clips = services.NewRedisClipStore(redisClients.Store, cfg.SpeechClipTTL)
		notifier = services.NewRedisNotifier(redisClients.Store, log)
		wsHub = websocket.NewHub(redisClients.PubSub, sessionAuth, log)
	} else {
		clips = services.NewMemoryClipStore(cfg.SpeechClipTTL)
		wsHub = websocket.NewHub(nil, sessionAuth, log)
		notifier = wsHub
	}
	log.Info("✓ WebSocket hub started")

	// ──── Initialize Tutor ────
	library := services.NewDocumentLibrary(geminiService, cfg.DocumentsGlob, log)
	tutor := services.NewTutorService(geminiService, library, synthesizer, notifier, profile, log)

	sessionHandler := handlers.NewSessionHandler(tutor, sessions, sessionAuth, log)
	chatHandler := handlers.NewChatHandler(tutor, sessions, clips, log)
	speechHandler := handlers.NewSpeechHandler(clips)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(sessionAuth, router.Handlers{
		Sessions: sessionHandler,
		Chat:     chatHandler,
		Speech:   speechHandler,
		Hub:      wsHub,
	}, log, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // covers upload, model call and synthesis
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Infof("✓ Tutor backend ready on http://localhost:%s", cfg.Port)
	log.Infof("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Infof("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server error")
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
