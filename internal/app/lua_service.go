package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/config"
	"github.com/dokzlo13/mysticd/internal/control"
	luart "github.com/dokzlo13/mysticd/internal/lua"
	"github.com/dokzlo13/mysticd/internal/lua/modules"
)

// StartupAction is invoked once after the script is loaded, if the script defines it.
const StartupAction = "startup"

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
	deps    luart.RuntimeDeps
}

// NewLuaService creates a new LuaService.
func NewLuaService(cfg *config.Config, deps luart.RuntimeDeps) *LuaService {
	return &LuaService{
		cfg:     cfg,
		Runtime: luart.NewRuntime(deps),
		deps:    deps,
	}
}

// LoadScript loads and executes the configured script. Without a script the
// runtime only serves actions registered from Go.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	if s.cfg.Script == "" {
		log.Info().Msg("No Lua script configured")
		return nil
	}
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start subscribes script event handlers, begins the Lua worker goroutine and runs
// the startup action.
func (s *LuaService) Start(ctx context.Context, bus modules.Subscriber) {
	s.Runtime.RegisterEventHandlers(ctx, bus)

	// Lua worker goroutine - the ONLY goroutine that touches Lua from here on
	s.Runtime.Start(ctx)

	if s.deps.Invoker != nil && s.deps.Invoker.HasAction(StartupAction) {
		go s.runStartupAction(ctx)
	}
}

func (s *LuaService) runStartupAction(ctx context.Context) {
	log.Info().Str("action", StartupAction).Msg("Running startup action")
	ctx = control.WithOrigin(ctx, "startup", "")
	if err := s.Runtime.InvokeAction(ctx, StartupAction, map[string]any{}); err != nil {
		log.Error().Err(err).Str("action", StartupAction).Msg("Startup action failed")
	}
}

// InvokeAction runs a script action on the Lua worker.
func (s *LuaService) InvokeAction(ctx context.Context, name string, args map[string]any) error {
	return s.Runtime.InvokeAction(ctx, name, args)
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
