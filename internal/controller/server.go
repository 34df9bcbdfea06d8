// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"cirelay/internal/authz"
	"cirelay/internal/controller/handlers"
	"cirelay/internal/controller/middleware"
	"cirelay/internal/scheduler"
)

// Config carries the server's wiring.
type Config struct {
	Addr      string
	Store     handlers.StoreFactory
	Scheduler *scheduler.Scheduler
	Policy    *authz.Policy
	Log       *slog.Logger

	// Metrics, when non-nil, is served on GET /metrics.
	Metrics http.Handler

	// RateLimit throttles each remoteci; 0 disables throttling.
	RateLimit rate.Limit
	RateBurst int
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(cfg Config) *Server {
	policy := cfg.Policy
	if policy == nil {
		policy = authz.Default()
	}
	h := handlers.New(cfg.Store, cfg.Scheduler, policy, cfg.Log)
	authMW := middleware.Auth(cfg.Store)
	limitMW := middleware.RateLimit(cfg.RateLimit, cfg.RateBurst)
	protected := func(hf http.HandlerFunc) http.Handler {
		return authMW(limitMW(hf))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	// Agent APIs, authenticated by remoteci API secret.
	mux.Handle("POST /jobs/schedule", protected(h.ScheduleJob))
	mux.Handle("POST /jobs", protected(h.CreateJob))
	mux.Handle("GET /jobs", protected(h.ListJobs))
	mux.Handle("GET /jobs/{id}", protected(h.GetJob))
	mux.Handle("POST /jobs/{id}/upgrade", protected(h.UpgradeJob))
	mux.Handle("POST /jobs/{id}/update", protected(h.UpdateJob))
	mux.Handle("POST /jobs/{id}/jobstates", protected(h.CreateJobState))
	mux.Handle("GET /jobs/{id}/jobstates", protected(h.ListJobStates))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
