package router

import (
	"net/http"

	"github.com/baedrik/skulls2/internal/handler"
	"github.com/baedrik/skulls2/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	EngineHandler  *handler.EngineHandler
	SessionHandler *handler.SessionHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
	AllowedOrigins []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Token", "X-Caller"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.SessionHandler != nil {
			r.Post("/sessions", cfg.SessionHandler.Open)
			r.Delete("/sessions", cfg.SessionHandler.Close)
		}

		// Identity-resolving routes. Anonymous callers may still query.
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.EngineHandler != nil {
				r.Post("/query", cfg.EngineHandler.Query)
				r.Get("/messages", cfg.EngineHandler.Messages)
			}

			// Gateway-only routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireGateway)

				if cfg.EngineHandler != nil {
					r.Post("/execute", cfg.EngineHandler.Execute)
				}
				if cfg.AdminHandler != nil {
					r.Route("/admin", func(r chi.Router) {
						r.Get("/stats", cfg.AdminHandler.GetStats)
						r.Post("/maintenance", cfg.AdminHandler.RunMaintenance)
						r.Post("/cache/flush", cfg.AdminHandler.FlushCache)
					})
				}
			})
		})
	})

	return r
}
