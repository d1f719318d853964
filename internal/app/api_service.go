package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/api"
	"github.com/dokzlo13/mysticd/internal/config"
)

// APIService runs the HTTP API server.
type APIService struct {
	cfg    *config.Config
	server *api.Server
	done   chan struct{}
}

// NewAPIService creates the API server. It does not listen until Start.
func NewAPIService(cfg *config.Config, deps api.Deps) (*APIService, error) {
	deps.Config = cfg.API
	deps.ShutdownTimeout = cfg.ShutdownTimeout.Duration()

	server, err := api.New(deps)
	if err != nil {
		return nil, err
	}
	return &APIService{cfg: cfg, server: server}, nil
}

// Start begins serving if the API is enabled. The server shuts down when ctx ends.
func (s *APIService) Start(ctx context.Context) {
	if !s.cfg.API.Enabled {
		log.Debug().Msg("API server disabled")
		return
	}

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.server.Run(ctx); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()
}

// Wait blocks until the server has shut down, at most for the shutdown timeout.
func (s *APIService) Wait() {
	if s.done == nil {
		return
	}
	select {
	case <-s.done:
	case <-time.After(s.cfg.ShutdownTimeout.Duration()):
		log.Warn().Msg("API server did not stop in time")
	}
}
