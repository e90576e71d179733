// Package httpapi serves vault analyses over a read-only HTTP API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/metrics"
	"github.com/fyrsmithlabs/vaultorg/internal/organizer"
)

// EmbeddingSource supplies the file embeddings each request analyzes.
type EmbeddingSource interface {
	Embeddings(ctx context.Context) (map[string][]float32, error)
}

// Options wires the server to its data and analyses. The Analyze and Inbox
// option sets are the defaults that query parameters override.
type Options struct {
	Source         EmbeddingSource
	Analyzer       *organizer.Analyzer
	InboxOrganizer *organizer.InboxOrganizer
	// Metrics, when set, is exposed at /metrics.
	Metrics *metrics.Metrics
	// MeterProvider receives request metrics; nil uses the global provider.
	MeterProvider metric.MeterProvider
	Analyze       organizer.AnalyzeOptions
	Inbox         organizer.InboxOptions
}

// Server provides the HTTP endpoints.
type Server struct {
	echo   *echo.Echo
	opts   Options
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(opts Options, logger *zap.Logger, cfg *Config) (*Server, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("embedding source cannot be nil")
	}
	if opts.Analyzer == nil || opts.InboxOrganizer == nil {
		return nil, fmt.Errorf("analyzer and inbox organizer are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8765,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(newRequestMetrics(opts.MeterProvider, logger).middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		opts:   opts,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	if s.opts.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.opts.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/folders", s.handleFolders)
	v1.GET("/outliers", s.handleOutliers)
	v1.GET("/suggestions", s.handleSuggestions)
	v1.GET("/inbox", s.handleInbox)
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server. It returns nil after a clean Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
