package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/api/handlers"
	appMiddleware "github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/api/middlewares"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/config"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/journal"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core/pipeline"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.SugaredLogger
}

// NewServer builds and wires all routes. Webhook endpoints are public by
// necessity (providers cannot authenticate); the admin surface sits behind
// JWT.
func NewServer(cfg *config.Config, orch *pipeline.Orchestrator, notifs *pipeline.NotificationGuard, jnl *journal.Journal, log *zap.SugaredLogger) *Server {
	webhookHandler := handlers.NewWebhookHandler(orch, notifs, cfg.DropboxAppSecret, log)
	adminHandler := handlers.NewAdminHandler(orch, jnl, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// provider callbacks
	r.Route("/webhooks", func(wh chi.Router) {
		wh.Get("/dropbox", webhookHandler.DropboxVerify)
		wh.Post("/dropbox", webhookHandler.DropboxNotify)
		wh.Post("/drive", webhookHandler.DriveNotify)
	})

	// protected admin surface
	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)
			protected.Get("/status", adminHandler.Status)
			protected.Post("/rescan", adminHandler.Rescan)
			protected.Post("/files/process", adminHandler.ProcessFile)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	s.log.Infow("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Fatalw("server error", "err", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
