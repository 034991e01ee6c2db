package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/msgbottle/bottle-go/internal/middleware"
	"github.com/rs/cors"
)

// RouterConfig holds what NewRouter mounts.
type RouterConfig struct {
	Auth         *AuthHandler
	Messages     *MessageHandler
	Tokens       middleware.TokenResolver
	LoginLimiter *middleware.RateLimiter
	CORS         cors.Options
	Logger       *slog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cfg.CORS).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.LoginLimiter != nil {
				r.Use(cfg.LoginLimiter.Handler)
			}
			r.Post("/login", cfg.Auth.HandleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(cfg.Tokens))

			r.Get("/overview", cfg.Messages.HandleOverview)
			r.Post("/overview", cfg.Messages.HandleOverview)

			r.Post("/messages", cfg.Messages.HandleCreate)
			r.Get("/messages/{message_id}", cfg.Messages.HandleGet)
			r.Post("/messages/{message_id}/fragments", cfg.Messages.HandleAppend)
			r.Delete("/messages/{message_id}", cfg.Messages.HandleDelete)

			r.Put("/me/name", cfg.Messages.HandleRename)
		})
	})

	return r
}
