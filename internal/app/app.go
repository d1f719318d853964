package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/config"
)

// App owns the services of one daemon run. New opens the SDK session and runs
// discovery once; Start brings up the optional surfaces around it.
type App struct {
	cfg        *config.Config
	services   *Services
	resetState bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures an App.
type Option func(*App)

// WithResetState forgets saved zone states before Start restores them.
func WithResetState() Option {
	return func(a *App) { a.resetState = true }
}

// New builds every service without starting any of them.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, services: services}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Services exposes the service container.
func (a *App) Services() *Services {
	return a.services
}

// Start starts all services. Cancelling ctx stops the app.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if a.resetState {
		log.Info().Msg("Clearing saved zone states")
		if err := a.ClearSavedState(); err != nil {
			log.Warn().Err(err).Msg("Failed to clear saved zone states")
		}
	}

	if err := a.services.Start(a.ctx); err != nil {
		a.cancel()
		return err
	}

	log.Info().
		Int("devices", len(a.services.SDK.Controller.Devices(nil))).
		Bool("simulate", a.cfg.SDK.Simulate).
		Msg("mysticd started")
	return nil
}

// Run starts the app, blocks until ctx is cancelled and shuts down.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return errors.Join(err, a.Stop())
	}
	a.Wait()
	return a.Stop()
}

// Stop shuts down all services. It is safe to call more than once.
func (a *App) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.services == nil {
		return nil
	}

	log.Info().Msg("Shutting down...")
	err := a.services.Stop()
	a.services = nil
	return err
}

// Wait blocks until the app context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// ClearSavedState forgets the zone states remembered for restore_on_start.
func (a *App) ClearSavedState() error {
	if a.services == nil {
		return nil
	}
	return a.services.ClearState()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
