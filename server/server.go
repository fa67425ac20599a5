// Package server exposes the query pipeline and the issue tracker over HTTP
// with CORS, request logging, and rate limiting.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nonsonwune/sqlagent/config"
	"github.com/nonsonwune/sqlagent/ratelimit"
)

// Service is the HTTP API server.
type Service struct {
	srv *http.Server
	log *zap.Logger
}

// New assembles the router and middleware chain for the handler.
func New(cfg config.Config, h *Handler, log *zap.Logger) *Service {
	if h.Log == nil {
		h.Log = log
	}

	mux := http.NewServeMux()
	h.Routes(mux)

	var handler http.Handler = mux
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewFromURL(cfg.RedisURL, cfg.RateLimit.Requests,
			time.Duration(cfg.RateLimit.Window)*time.Second)
		handler = withRateLimit(limiter, cfg.RateLimit.Window, log, handler)
	}
	handler = withRequestLog(log, handler)
	handler = withCORS(cfg.CORS, handler)

	return &Service{
		srv: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

// Start serves until Shutdown is called or the listener fails.
func (s *Service) Start() error {
	s.log.Info("api listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Service) Shutdown(ctx context.Context) error {
	s.log.Info("api shutting down")
	return s.srv.Shutdown(ctx)
}
