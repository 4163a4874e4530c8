// Package server wires handlers, middleware and routes into the bridge
// the desktop UI talks to, and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/auth"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/handler"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/middleware"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/service"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string
}

// Deps are the services the bridge exposes. Closers run after shutdown,
// in order (the sqlite backend, for one).
type Deps struct {
	Users    *service.UserService
	Ebooks   *service.EbookService
	Readings *service.ReadingService
	Tokens   *auth.TokenService
	Registry *prometheus.Registry
	Closers  []io.Closer
}

// Server is the bridge HTTP server.
type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Users == nil || deps.Ebooks == nil || deps.Readings == nil {
		return nil, errors.New("server: user, ebook and reading services are required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("server: token service is required")
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes registers the bridge surface:
//
//	GET    /healthz                      liveness, no token
//	GET    /metrics                      Prometheus, no token
//	GET    /ebooks/{fileName}            managed file bytes (ebooks:// scheme)
//	/api/users, /api/session             accounts and the login session
//	/api/ebooks, /api/files              catalogue and managed files
//
// Everything but /healthz and /metrics needs the bridge token.
func (s *Server) setupRoutes() {
	metrics := middleware.NewMetrics(s.deps.Registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Instrument)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"status":"ok"}`))
	})
	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{}))

	users := handler.NewUserHandler(s.deps.Users, s.deps.Readings, s.logger)
	ebooks := handler.NewEbookHandler(s.deps.Ebooks, s.deps.Readings, s.logger)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireBridgeToken(s.deps.Tokens))

		r.Get("/ebooks/{fileName}", ebooks.HandleServeFile)

		r.Route("/api", func(r chi.Router) {
			r.Route("/users", func(r chi.Router) {
				r.Get("/", users.HandleList)
				r.Post("/", users.HandleAdd)
				r.Post("/verify", users.HandleVerify)
				r.Post("/password-reset", users.HandlePasswordReset)
				r.Delete("/{uid}", users.HandleDeactivate)
				r.Patch("/{uid}/username", users.HandleUpdateUsername)
				r.Put("/{uid}/password", users.HandleChangePassword)
				r.Put("/{uid}/verified", users.HandleSetVerified)
				r.Get("/{uid}/history", users.HandleHistory)
			})

			r.Route("/session", func(r chi.Router) {
				r.Get("/", users.HandleCurrent)
				r.Post("/", users.HandleLogin)
				r.Delete("/", users.HandleLogout)
			})

			r.Route("/ebooks", func(r chi.Router) {
				r.Get("/", ebooks.HandleList)
				r.Post("/", ebooks.HandleUpload)
				r.Get("/{id}", ebooks.HandleGet)
				r.Patch("/{id}", ebooks.HandleUpdate)
				r.Delete("/{id}", ebooks.HandleRemove)
				r.Put("/{id}/reading", ebooks.HandleReadingStatus)
			})

			r.Get("/files/path", ebooks.HandleFilePath)
			r.Get("/files/exists", ebooks.HandleFileExists)
		})
	})
}

// Start serves on the configured address until SIGINT/SIGTERM or ctx is
// done, then drains in-flight calls and runs the closers.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.config.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.close()

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", slog.String("addr", ln.Addr().String()))
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

func (s *Server) close() {
	for _, c := range s.deps.Closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

// WriteToken mints a bridge token and writes it to path, readable only by
// the owner. The UI reads it at startup.
func WriteToken(tokens *auth.TokenService, path string) error {
	token, err := tokens.Generate("desktop-ui")
	if err != nil {
		return fmt.Errorf("server: minting bridge token: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("server: writing bridge token: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("server: restricting bridge token: %w", err)
	}
	return nil
}
