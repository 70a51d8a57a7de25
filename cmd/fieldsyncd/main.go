package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	fieldsynchttp "github.com/dukerupert/fieldsync/http"
	"github.com/dukerupert/fieldsync/internal/validation"
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Stdout, os.Stderr, os.Args, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point for the daemon, designed for testability.
// It accepts all external dependencies (IO, args, env) as parameters.
func run(
	ctx context.Context,
	stdout, stderr io.Writer,
	args []string,
	getenv func(string) string,
) error {
	// Load .env for local development; production sets real env vars
	_ = godotenv.Load()

	cfg, err := LoadConfig(getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(stderr, cfg)
	slog.SetDefault(logger)
	logger.Debug("logger initialized", slog.String("level", cfg.LogLevel))
	logger.Debug("daemon configuration",
		slog.String("environment", cfg.Environment),
		slog.String("device_id", cfg.DeviceID),
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port))

	// Assemble the engine
	services, err := initServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer services.Close()

	// Start background components: monitor first so the controller and
	// worker see a classified condition from the beginning
	if err := services.Monitor.Start(ctx); err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}
	defer services.Monitor.Stop()

	services.Controller.Start(ctx)
	defer services.Controller.Stop()

	if err := services.Syncer.Start(ctx); err != nil {
		return fmt.Errorf("starting syncer: %w", err)
	}

	services.Coordinator.Start(ctx)

	// Device API
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := fieldsynchttp.NewServer(fieldsynchttp.Config{
		Addr:        addr,
		Logger:      logger,
		Coordinator: services.Coordinator,
		Store:       services.DB.InspectionStore,
		Media:       services.MediaStore,
		Queue:       services.DB.SyncQueue,
		Monitor:     services.Monitor,
		Controller:  services.Controller,
	})
	server.Echo().Validator = validation.NewValidator()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", addr))
		if err := server.Open(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	// Graceful shutdown: stop intake, drain the worker, persist the active
	// record, then close the store
	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if err := server.Close(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
		return fmt.Errorf("server shutdown: %w", err)
	}

	services.Coordinator.Stop()

	if err := services.Syncer.Stop(); err != nil {
		logger.Warn("syncer shutdown", slog.String("error", err.Error()))
	}

	logger.Info("daemon exited gracefully")
	return nil
}

// newLogger creates a configured slog.Logger based on environment.
func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Environment == "prod" || cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.String("time", a.Value.Time().Format(time.RFC3339Nano))
				}
				return a
			},
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}
