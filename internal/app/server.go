package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/markdave123-py/Contexta/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Contexta/internal/api/middlewares"
	"github.com/markdave123-py/Contexta/internal/config"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, log zerolog.Logger, svc *Services) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, log, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: log}
}

// NewRouter returns the chi router serving the public API.
func NewRouter(cfg *config.Config, log zerolog.Logger, svc *Services) http.Handler {
	authHandler := handlers.NewAuthHandler(svc.Users)
	docHandler := handlers.NewDocumentHandler(svc.Documents, int64(cfg.MaxUploadMB)<<20)
	chatHandler := handlers.NewChatHandler(svc.Answers)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	}))

	// public endpoints
	r.Get("/health", handlers.Health)
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Post("/auth/question", authHandler.SecurityQuestion)
	r.Post("/auth/reset-password", authHandler.ResetPassword)

	// protected endpoints
	r.Group(func(protected chi.Router) {
		protected.Use(appMiddleware.Authenticate(svc.Guard))
		protected.Get("/me", authHandler.Me)
		protected.Post("/upload", docHandler.UploadDocument)
		protected.Get("/documents", docHandler.GetDocuments)
		protected.Get("/documents/{id}", docHandler.GetDocument)
		protected.Delete("/documents/{id}", docHandler.DeleteDocument)
		protected.Post("/ask", chatHandler.Ask)
		protected.Post("/summarize", chatHandler.Summarize)
		protected.Post("/suggest", chatHandler.Suggest)
	})

	return r
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
