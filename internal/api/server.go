package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/slidecast/engine/internal/config"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/logger"
	"github.com/slidecast/engine/internal/websocket"
)

// Server wraps the HTTP server hosting the REST, websocket and
// operational endpoints.
type Server struct {
	httpServer *http.Server
}

func NewServer(cfg *config.Config, manager *jobs.Manager, hub *websocket.Hub) *Server {
	mux := http.NewServeMux()
	AddRoutes(mux, manager, hub, cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logger.Logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
