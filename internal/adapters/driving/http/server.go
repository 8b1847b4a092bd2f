// Package http is the driving HTTP adapter: a thin JSON boundary over
// the document service. Uploads are confirmed here, pipeline work is
// enqueued here, and results are read here; all processing happens in
// the worker.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folio-labs/folio-core/internal/core/ports/driven"
	"github.com/folio-labs/folio-core/internal/core/ports/driving"
	"github.com/folio-labs/folio-core/internal/ratelimit"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	docService driving.DocumentService

	// Infrastructure
	jobQueue driven.JobQueue
	limiter  *ratelimit.Limiter
	db       Pinger // PostgreSQL health check
	redis    Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// JWTSecret signs and verifies bearer tokens
	JWTSecret string
	// APIKeyHash is the bcrypt hash admitting service-to-service calls
	APIKeyHash string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	docService driving.DocumentService,
	jobQueue driven.JobQueue,
	limiter *ratelimit.Limiter,
	db Pinger,
	redis Pinger, // can be nil
) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		version:    cfg.Version,
		docService: docService,
		jobQueue:   jobQueue,
		limiter:    limiter,
		db:         db,
		redis:      redis,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) {
	auth := NewAuthMiddleware([]byte(cfg.JWTSecret), []byte(cfg.APIKeyHash))
	limit := NewRateLimitMiddleware(s.limiter)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Document endpoints (authenticated)
	s.router.Handle("POST /api/v1/documents",
		auth.Authenticate(limit.Limit(ratelimit.ClassUpload,
			http.HandlerFunc(s.handleRegisterDocument))))
	s.router.Handle("GET /api/v1/documents",
		auth.Authenticate(limit.Limit(ratelimit.ClassDefault,
			http.HandlerFunc(s.handleListDocuments))))
	s.router.Handle("GET /api/v1/documents/{id}",
		auth.Authenticate(limit.Limit(ratelimit.ClassDefault,
			http.HandlerFunc(s.handleGetDocument))))
	s.router.Handle("DELETE /api/v1/documents/{id}",
		auth.Authenticate(limit.Limit(ratelimit.ClassDefault,
			http.HandlerFunc(s.handleDeleteDocument))))
	s.router.Handle("GET /api/v1/documents/{id}/pages/{n}",
		auth.Authenticate(limit.Limit(ratelimit.ClassDefault,
			http.HandlerFunc(s.handleGetPage))))

	// Pipeline triggers: enqueue-while-outstanding is a 202 no-op, never an error
	s.router.Handle("POST /api/v1/documents/{id}/reprocess",
		auth.Authenticate(limit.Limit(ratelimit.ClassUpload,
			http.HandlerFunc(s.handleReprocess))))
	s.router.Handle("POST /api/v1/documents/{id}/convert",
		auth.Authenticate(limit.Limit(ratelimit.ClassUpload,
			http.HandlerFunc(s.handleRequestConversion))))

	// Queue observability
	s.router.Handle("GET /api/v1/jobs/stats",
		auth.Authenticate(limit.Limit(ratelimit.ClassDefault,
			http.HandlerFunc(s.handleJobStats))))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
