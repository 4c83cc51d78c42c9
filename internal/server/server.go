// Package server exposes registered models over a small JSON API.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/minorm/internal/config"
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/logger"
	"github.com/koustreak/minorm/internal/orm"
	"github.com/prometheus/client_golang/prometheus"
)

// Server owns the HTTP listener. The pool and registry are borrowed;
// closing them is the caller's job.
type Server struct {
	cfg      config.ServerConfig
	pool     *database.Pool
	registry *orm.Registry
	gatherer prometheus.Gatherer
	log      *logger.Logger

	httpServer *http.Server
}

// New returns a Server. A nil gatherer serves the default prometheus registry.
func New(cfg config.ServerConfig, pool *database.Pool, registry *orm.Registry, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		pool:     pool,
		registry: registry,
		gatherer: gatherer,
		log:      logger.OrNop(log),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start listens until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.log.With().Str("addr", s.cfg.Addr).Logger().Info("starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
