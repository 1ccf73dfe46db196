// Package server exposes the bet registry over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/visioninhope/BetM3/internal/domain"
	"github.com/visioninhope/BetM3/internal/server/handler"
	"github.com/visioninhope/BetM3/internal/server/middleware"
	"github.com/visioninhope/BetM3/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	RateLimitPerMin int
	Auth            middleware.AuthConfig
	// Limiter backs RateLimitPerMin. Nil disables rate limiting.
	Limiter domain.RateLimiter
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Bets     *handler.BetHandler
	Admin    *handler.AdminHandler
	Registry *handler.RegistryHandler
}

// Server is the HTTP + WebSocket API of the engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and builds the middleware chain:
// CORS, logging, rate limiting, then signature verification.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler returns the routed and wrapped handler without binding a port.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/registry", handlers.Registry.GetRegistry)
	mux.HandleFunc("GET /api/accounts/{addr}/balance", handlers.Registry.GetBalance)
	mux.HandleFunc("GET /api/events", handlers.Registry.ListEvents)

	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("POST /api/bets", handlers.Bets.CreateBet)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.GetBet)
	mux.HandleFunc("GET /api/bets/{id}/participants", handlers.Bets.ListParticipants)
	mux.HandleFunc("GET /api/bets/{id}/participants/{addr}", handlers.Bets.GetParticipantStake)
	mux.HandleFunc("GET /api/bets/{id}/events", handlers.Bets.ListEvents)
	mux.HandleFunc("POST /api/bets/{id}/join", handlers.Bets.JoinBet)
	mux.HandleFunc("POST /api/bets/{id}/votes", handlers.Bets.SubmitVote)
	mux.HandleFunc("POST /api/bets/{id}/finalize", handlers.Bets.Finalize)

	mux.HandleFunc("POST /api/admin/bets/{id}/finalize", handlers.Admin.Finalize)
	mux.HandleFunc("PUT /api/admin/yield-rate", handlers.Admin.SetYieldRate)
	mux.HandleFunc("PUT /api/admin/min-stake", handlers.Admin.SetMinStake)
	mux.HandleFunc("PUT /api/admin/owner", handlers.Admin.TransferOwnership)
	mux.HandleFunc("DELETE /api/admin/owner", handlers.Admin.RenounceOwnership)
	mux.HandleFunc("GET /api/admin/audit", handlers.Admin.ListAudit)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	auth := cfg.Auth
	if auth.Logger == nil {
		auth.Logger = logger
	}

	var h http.Handler = mux
	h = middleware.SignedRequests(auth)(h)
	h = middleware.RateLimit(cfg.Limiter, cfg.RateLimitPerMin, time.Minute, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
