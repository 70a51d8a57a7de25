// Package http exposes the engine's device API: inspection lifecycle
// operations, sync introspection, and operational endpoints. The presentation
// layer on the device talks to this surface only.
package http

import (
	"context"
	"log/slog"
	"net"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/internal/adaptive"
	"github.com/dukerupert/fieldsync/internal/monitor"
	"github.com/dukerupert/fieldsync/workflow"
)

// Server represents the HTTP server with all its dependencies.
type Server struct {
	echo   *echo.Echo
	ln     net.Listener
	logger *slog.Logger

	// Configuration
	Addr string

	// Engine components
	coordinator *workflow.Coordinator
	store       fieldsync.InspectionStore
	media       fieldsync.MediaStore
	queue       fieldsync.SyncQueue
	monitor     *monitor.Monitor
	controller  *adaptive.Controller
}

// Config holds the configuration for creating a new Server.
type Config struct {
	Addr   string
	Logger *slog.Logger

	Coordinator *workflow.Coordinator
	Store       fieldsync.InspectionStore
	Media       fieldsync.MediaStore
	Queue       fieldsync.SyncQueue
	Monitor     *monitor.Monitor
	Controller  *adaptive.Controller
}

// NewServer creates a new HTTP server with the given configuration.
func NewServer(cfg Config) *Server {
	s := &Server{
		Addr:        cfg.Addr,
		logger:      cfg.Logger,
		coordinator: cfg.Coordinator,
		store:       cfg.Store,
		media:       cfg.Media,
		queue:       cfg.Queue,
		monitor:     cfg.Monitor,
		controller:  cfg.Controller,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// Echo returns the underlying Echo instance.
// Use sparingly - prefer registering routes through Server methods.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Open starts the HTTP server.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.echo.Server.Serve(s.ln); err != nil {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("server started", slog.String("addr", s.Addr))
	return nil
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// URL returns the URL of the server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}
