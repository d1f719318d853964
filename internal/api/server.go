// Package api serves the HTTP interface to the zone controller, profiles, actions
// and the ledger.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/mysticd/internal/actions"
	"github.com/dokzlo13/mysticd/internal/config"
	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/ledger"
	"github.com/dokzlo13/mysticd/internal/profile"
	"github.com/dokzlo13/mysticd/internal/scheduler"
)

// ActionRunner runs script actions.
type ActionRunner interface {
	InvokeAction(ctx context.Context, name string, args map[string]any) error
}

// ActionLister lists script actions.
type ActionLister interface {
	List() []actions.Info
}

// DropCounter reports events lost on a full bus.
type DropCounter interface {
	Dropped() uint64
}

// ScheduleLister lists scheduled actions.
type ScheduleLister interface {
	Entries() []scheduler.Entry
}

// Deps holds the dependencies of the API server. Profiles, Ledger and Actions are
// optional; their routes answer 404 when absent.
type Deps struct {
	Config          config.APIConfig
	ShutdownTimeout time.Duration
	Controller      *control.Controller
	Profiles        *profile.Manager
	Ledger          *ledger.Ledger
	Actions         ActionRunner
	ActionNames     ActionLister
	Schedules       ScheduleLister
	Events          DropCounter
}

// Server is the HTTP API server
type Server struct {
	cfg             config.APIConfig
	shutdownTimeout time.Duration
	ctrl            *control.Controller
	profiles        *profile.Manager
	ledger          *ledger.Ledger
	actions         ActionRunner
	actionNames     ActionLister
	schedules       ScheduleLister
	events          DropCounter

	// writeLimiter bounds zone writes across all clients. The native library
	// serializes every call, so a burst of writes would starve reads.
	writeLimiter *rate.Limiter

	httpServer *http.Server
}

// New creates an API server. It does not listen until Run.
func New(deps Deps) (*Server, error) {
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}

	limit := rate.Inf
	if deps.Config.WriteRateLimit > 0 {
		limit = rate.Limit(deps.Config.WriteRateLimit)
	}
	burst := deps.Config.WriteBurst
	if burst <= 0 {
		burst = 1
	}

	return &Server{
		cfg:             deps.Config,
		shutdownTimeout: deps.ShutdownTimeout,
		ctrl:            deps.Controller,
		profiles:        deps.Profiles,
		ledger:          deps.Ledger,
		actions:         deps.Actions,
		actionNames:     deps.ActionNames,
		schedules:       deps.Schedules,
		events:          deps.Events,
		writeLimiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// Handler returns the routed handler with all middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Run listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
