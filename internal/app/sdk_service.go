package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/config"
	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/eventbus"
	"github.com/dokzlo13/mysticd/internal/ledger"
	"github.com/dokzlo13/mysticd/internal/mystic"
	"github.com/dokzlo13/mysticd/internal/simulator"
	"github.com/dokzlo13/mysticd/internal/state"
)

// restoreSource is the origin source of writes made while restoring saved states.
const restoreSource = "restore"

// SDKService owns the SDK session, the controller over it and the event bus the
// controller publishes to.
type SDKService struct {
	cfg *config.Config

	SDK        *mystic.SDK
	Controller *control.Controller
	Bus        *eventbus.Bus
	ZoneStates *state.TypedStore[mystic.ZoneState]
}

// NewSDKService opens the native library, or the simulator when configured, and
// runs the first discovery.
func NewSDKService(cfg *config.Config, l *ledger.Ledger, store *state.Store) (*SDKService, error) {
	sdk, err := openSDK(cfg.SDK)
	if err != nil {
		return nil, err
	}

	bus := eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	zoneStates := state.NewTypedStore[mystic.ZoneState](store, state.KindZoneState)
	ctrl := control.New(sdk,
		control.WithLedger(l),
		control.WithPublisher(bus),
		control.WithStateSaver(zoneStates),
	)

	return &SDKService{
		cfg:        cfg,
		SDK:        sdk,
		Controller: ctrl,
		Bus:        bus,
		ZoneStates: zoneStates,
	}, nil
}

func openSDK(cfg config.SDKConfig) (*mystic.SDK, error) {
	opts := []mystic.Option{mystic.WithLevelPolicy(cfg.Policy())}

	if cfg.Simulate {
		fixture, err := simulator.LoadFixture(cfg.Fixture)
		if err != nil {
			return nil, err
		}
		sdk, err := simulator.Open(fixture, opts...)
		if err != nil {
			return nil, fmt.Errorf("open simulator: %w", err)
		}
		log.Info().Str("fixture", cfg.Fixture).Int("devices", len(sdk.Devices())).Msg("Simulated SDK session opened")
		return sdk, nil
	}

	sdk, err := mystic.Open(cfg.LibraryPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.LibraryPath, err)
	}
	log.Info().Str("library", cfg.LibraryPath).Int("devices", len(sdk.Devices())).Msg("SDK session opened")
	return sdk, nil
}

// Start re-applies the last written zone states when restore_on_start is set.
// Failing zones are logged and do not stop startup.
func (s *SDKService) Start(ctx context.Context) {
	for _, d := range s.SDK.DevicesFiltered(nil) {
		log.Info().Str("device", d.Name()).Int("zones", d.ZoneCount()).Msg("Device discovered")
	}

	if !s.cfg.SDK.RestoreOnStart {
		return
	}

	saved, err := s.ZoneStates.All()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load saved zone states")
		return
	}
	if len(saved) == 0 {
		return
	}

	if _, err := s.Controller.Restore(control.WithOrigin(ctx, restoreSource, ""), saved); err != nil {
		log.Warn().Err(err).Msg("Some zone states could not be restored")
	}
}

// ClearSavedStates forgets the last written zone states.
func (s *SDKService) ClearSavedStates() error {
	return s.ZoneStates.Clear()
}

// Close drains the event bus and releases the native library.
func (s *SDKService) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(ctx)
	}
	if s.SDK != nil {
		if err := s.SDK.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close SDK session")
		}
	}
}
