package app

import (
	"context"

	"github.com/dokzlo13/mysticd/internal/actions"
	"github.com/dokzlo13/mysticd/internal/api"
	"github.com/dokzlo13/mysticd/internal/config"
	"github.com/dokzlo13/mysticd/internal/db"
	"github.com/dokzlo13/mysticd/internal/ledger"
	luart "github.com/dokzlo13/mysticd/internal/lua"
	"github.com/dokzlo13/mysticd/internal/profile"
	"github.com/dokzlo13/mysticd/internal/state"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger

	// State store (generic JSON store)
	Store *state.Store

	// Action system
	Registry *actions.Registry
	Invoker  *actions.Invoker

	Profiles *profile.Manager

	// High-level services
	SDK       *SDKService
	Lua       *LuaService
	API       *APIService
	MQTT      *MQTTService
	Scheduler *SchedulerService
	Cleanup   *LedgerService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger
	s.Ledger = ledger.New(database.DB)

	// Initialize generic state store
	s.Store = state.NewStore(database.DB)

	// Open the SDK session and the controller over it
	s.SDK, err = NewSDKService(cfg, s.Ledger, s.Store)
	if err != nil {
		s.Close()
		return nil, err
	}
	ctrl := s.SDK.Controller

	s.Profiles = profile.NewManager(ctrl, s.Store, s.Ledger, s.SDK.Bus)

	// Initialize action system
	s.Registry = actions.NewRegistry()
	s.Invoker = actions.NewInvoker(s.Registry, ctrl, s.Ledger)

	// Scheduled actions run through the Lua worker
	s.Scheduler = NewSchedulerService(cfg, s.Ledger)

	// Initialize Lua service
	s.Lua = NewLuaService(cfg, luart.RuntimeDeps{
		Controller: ctrl,
		Registry:   s.Registry,
		Invoker:    s.Invoker,
		Profiles:   s.Profiles,
		Store:      s.Store,
		Scheduler:  s.Scheduler.Scheduler,
	})
	s.Scheduler.Scheduler.SetRunner(s.Lua)

	// Initialize API service
	s.API, err = NewAPIService(cfg, api.Deps{
		Controller:  ctrl,
		Profiles:    s.Profiles,
		Ledger:      s.Ledger,
		Actions:     s.Lua,
		ActionNames: s.Registry,
		Schedules:   s.Scheduler.Scheduler,
		Events:      s.SDK.Bus,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	// Initialize MQTT bridge
	s.MQTT = NewMQTTService(cfg, ctrl, s.SDK.Bus, s.Lua)

	s.Cleanup = NewLedgerService(cfg, s.Ledger)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	// Restore saved zone states before anything else writes
	s.SDK.Start(ctx)

	// Load Lua script before starting worker
	if err := s.Lua.LoadScript(); err != nil {
		return err
	}

	// Start all background services
	s.Lua.Start(ctx, s.SDK.Bus)
	s.Scheduler.Start(ctx)
	s.API.Start(ctx)
	if err := s.MQTT.Start(ctx); err != nil {
		return err
	}
	s.Cleanup.Start(ctx)

	return nil
}

// ClearState forgets the saved zone states.
func (s *Services) ClearState() error {
	return s.SDK.ClearSavedStates()
}

// Stop gracefully stops all services. The context driving them must already be
// cancelled.
func (s *Services) Stop() error {
	if s.API != nil {
		s.API.Wait()
	}
	s.Close()
	return nil
}

// Close releases all resources. The SDK session is closed after everything that
// can still call into it.
func (s *Services) Close() {
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.SDK != nil {
		s.SDK.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
