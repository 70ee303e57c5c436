package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"tuteur-backend/internal/handlers"
	"tuteur-backend/internal/middleware"
	"tuteur-backend/internal/websocket"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Sessions *handlers.SessionHandler
	Chat     *handlers.ChatHandler
	Speech   *handlers.SpeechHandler
	Hub      *websocket.Hub
}

func New(
	auth *middleware.SessionAuth,
	h Handlers,
	log logrus.FieldLogger,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(frontendURL))

	// Session creation uploads course files, 10 req/min per IP
	sessionLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Get("/profile", h.Sessions.Profile)

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.With(sessionLimiter.Middleware).Post("/", h.Sessions.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(auth.Middleware)
				r.Get("/", h.Sessions.Get)
				r.Delete("/", h.Sessions.Delete)
				r.Put("/speech", h.Sessions.SetSpeech)
				r.Post("/messages", h.Chat.AskQuestion)
				r.Post("/audio", h.Chat.AskByVoice)
				r.Post("/quiz", h.Chat.Quiz)
			})
		})

		// ──── Speech Clips ────
		r.Get("/speech/{clipID}", h.Speech.Fetch)

		// ──── WebSocket ────
		r.Get("/ws", h.Hub.HandleWebSocket)
	})

	return r
}
