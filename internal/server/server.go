// Package server exposes the operator dashboard API: portfolio status,
// on-demand cycles, risk history, the trade journal, archived reports, a
// WebSocket event stream and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
	"github.com/alanyoungcy/themetrader/internal/server/handler"
	"github.com/alanyoungcy/themetrader/internal/server/middleware"
	"github.com/alanyoungcy/themetrader/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey enables authentication when non-empty.
	APIKey      string
	RateLimit   int
	RateWindow  time.Duration
	MetricsPath string
}

// Handlers aggregates the route handlers.
type Handlers struct {
	Health    *handler.HealthHandler
	Portfolio *handler.PortfolioHandler
	Cycle     *handler.CycleHandler
	Risk      *handler.RiskHandler
	Trades    *handler.TradeHandler
	Reports   *handler.ReportHandler
}

// Options carries optional collaborators. Any field may be nil.
type Options struct {
	Hub     *ws.Hub
	Metrics http.Handler
	Limiter domain.RateLimiter
	Observe middleware.ObserveFunc
}

// Server is the dashboard HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and builds the middleware chain:
// CORS, logging, rate limit, then auth.
func NewServer(cfg Config, h Handlers, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Portfolio.Status)
	mux.HandleFunc("GET /api/positions", h.Portfolio.Positions)
	mux.HandleFunc("POST /api/cycle/run", h.Cycle.Run)
	mux.HandleFunc("GET /api/cycle/last", h.Cycle.Last)
	mux.HandleFunc("GET /api/cycle/recent", h.Cycle.Recent)
	mux.HandleFunc("GET /api/risk/history", h.Risk.History)
	mux.HandleFunc("GET /api/risk/{symbol}", h.Risk.Symbol)
	mux.HandleFunc("GET /api/trades", h.Trades.List)
	mux.HandleFunc("GET /api/reports", h.Reports.List)

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if opts.Metrics != nil {
		mux.Handle("GET "+metricsPath, opts.Metrics)
	}
	if opts.Hub != nil {
		mux.HandleFunc("GET /ws", opts.Hub.HandleWS)
	}

	var chain http.Handler = mux
	chain = middleware.Auth(cfg.APIKey, "/api/health", metricsPath)(chain)
	if opts.Limiter != nil && cfg.RateLimit > 0 {
		chain = middleware.RateLimit(opts.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(chain)
	}
	chain = middleware.Logging(logger, opts.Observe)(chain)
	chain = middleware.CORS(cfg.CORSOrigins)(chain)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           chain,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Long enough for an on-demand cycle over a full universe.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
