// Package web exposes the control API: worker start/stop, queue and model
// inspection, configuration, and Prometheus metrics.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/database"
	"github.com/eduard256/imgable-ai/internal/logger"
	"github.com/eduard256/imgable-ai/internal/modelcache"
	"github.com/eduard256/imgable-ai/internal/worker"
)

// WorkerControl is the worker surface the API drives.
type WorkerControl interface {
	Start(ctx context.Context) error
	Stop() error
	Status() worker.Status
	Current() *worker.CurrentPhoto
	LastRun() *worker.RunStats
}

// QueueReader provides queue statistics.
type QueueReader interface {
	Stats(ctx context.Context) (*database.QueueStats, error)
}

// ModelManager is the model cache surface the API exposes.
type ModelManager interface {
	Info() modelcache.Info
	UnloadAll() int
}

// Deps bundles the server's collaborators.
type Deps struct {
	Config  *config.Config
	Worker  WorkerControl
	Queue   QueueReader
	Models  ModelManager
	Log     *logger.Logger
	Version string
}

// Server is the control-plane HTTP server.
type Server struct {
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	s := &Server{
		deps:   deps,
		router: r,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.API.Host, deps.Config.API.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.deps.Log.Infof("control API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Log.Info("shutting down control API")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
