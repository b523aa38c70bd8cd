// Package web provides the HTTP API and landing page for moodtunes.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8000"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr        string
	FrontendURL string   // where /spotify-callback sends the browser
	CORSOrigins []string // allowed origins, "*" for any
	TemplatesFS fs.FS
	StaticFS    fs.FS
	Emotions    EmotionDetector
	Catalog     Catalog
	Logger      *zap.Logger
}

// Server is the HTTP server for the application.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	log      *zap.Logger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Emotions == nil || cfg.Catalog == nil {
		return nil, errors.New("emotion detector and catalog are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "/"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	handlers := NewHandlers(HandlersConfig{
		Emotions:    cfg.Emotions,
		Catalog:     cfg.Catalog,
		Templates:   templates,
		States:      NewStateStore(),
		FrontendURL: cfg.FrontendURL,
		Logger:      log,
	})

	s := &Server{
		router:   chi.NewRouter(),
		handlers: handlers,
		log:      log,
	}

	s.setupMiddleware(cfg.CORSOrigins)
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	if staticFS != nil {
		fileServer := http.FileServer(http.FS(staticFS))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	s.router.Get("/", s.handlers.Home)
	s.router.Get("/healthz", s.handlers.Health)

	s.router.Get("/recommendations", s.handlers.Recommendations)
	s.router.Get("/genres", s.handlers.Genres)

	s.router.Post("/detect-emotion", s.handlers.DetectEmotion)
	s.router.Post("/detect-emotion/breakdown", s.handlers.EmotionBreakdown)

	s.router.Get("/spotify-auth", s.handlers.SpotifyAuth)
	s.router.Get("/spotify-callback", s.handlers.SpotifyCallback)
	s.router.Post("/spotify-refresh", s.handlers.SpotifyRefresh)
	s.router.Get("/user-history", s.handlers.UserHistory)
	s.router.Get("/user-history/emotion", s.handlers.UserHistoryEmotion)
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting server", zap.String("addr", "http://"+s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		s.log.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info("server stopped")
	return nil
}
