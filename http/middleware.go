package http

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/dukerupert/fieldsync/internal/middleware"
)

// registerMiddleware wires the shared middleware stack.
func (s *Server) registerMiddleware() {
	s.echo.Use(echomiddleware.Recover())
	s.echo.Use(middleware.RequestIDMiddleware(s.logger))
	s.echo.Use(middleware.MetricsMiddleware())
	s.echo.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("request_id", middleware.GetRequestID(c)),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				s.logger.Error("request", attrs...)
				return nil
			}
			s.logger.Info("request", attrs...)
			return nil
		},
	}))
}
