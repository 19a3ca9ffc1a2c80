package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"machinery-assistant/internal/handlers"
	"machinery-assistant/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	chatLimiter *middleware.RateLimiter,
	sessionHandler *handlers.SessionHandler,
	chatHandler *handlers.ChatHandler,
	statusHandler *handlers.StatusHandler,
	wsHandler http.HandlerFunc,
	frontendURL string,
	trustProxyHeaders bool,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if trustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", statusHandler.Get)

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Put("/settings", sessionHandler.UpdateSettings)
				r.Get("/messages", chatHandler.Messages)
			})
		})

		// ──── Chat Routes ────
		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Use(jwtAuth.Middleware)
			r.Post("/chat", chatHandler.Send)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHandler)
	})

	return r
}
