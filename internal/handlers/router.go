package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jwebster45206/npc-mind/internal/logger"
)

// Handlers groups everything the router mounts. Events may be nil when no
// Redis is configured.
type Handlers struct {
	Health   *HealthHandler
	NPCs     *NPCHandler
	Dialogue *DialogueHandler
	Events   *EventsHandler
}

// NewRouter builds the API routes.
func NewRouter(h Handlers, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/npcs", func(r chi.Router) {
			h.NPCs.Routes(r, func(r chi.Router) {
				if h.Dialogue != nil {
					r.Method(http.MethodPost, "/dialogue", h.Dialogue)
				}
				if h.Events != nil {
					r.Method(http.MethodGet, "/events", h.Events)
				}
			})
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request ID.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.WithRequestID(log, middleware.GetReqID(r.Context())).Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}
