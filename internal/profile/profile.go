// Package profile captures the state of many zones under a name and re-applies it
// later, e.g. to switch lighting off for a while and restore it afterwards.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/eventbus"
	"github.com/dokzlo13/mysticd/internal/ledger"
	"github.com/dokzlo13/mysticd/internal/mystic"
	"github.com/dokzlo13/mysticd/internal/state"
)

// ErrNotFound is returned for a profile name that was never captured.
var ErrNotFound = errors.New("profile not found")

// Profile is a named snapshot of zone states keyed by control.ZoneID.
type Profile struct {
	Name       string                      `json:"name"`
	CapturedAt time.Time                   `json:"captured_at"`
	Zones      map[string]mystic.ZoneState `json:"zones"`
}

// Result reports the outcome of Apply per zone.
type Result struct {
	Profile string            `json:"profile"`
	Applied []string          `json:"applied"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// Manager stores profiles and applies them through a controller.
type Manager struct {
	ctrl   *control.Controller
	store  *state.TypedStore[Profile]
	ledger control.Recorder
	bus    control.Publisher
	now    func() time.Time
}

// NewManager creates a profile manager. rec and bus may be nil.
func NewManager(ctrl *control.Controller, store *state.Store, rec control.Recorder, bus control.Publisher) *Manager {
	return &Manager{
		ctrl:   ctrl,
		store:  state.NewTypedStore[Profile](store, state.KindProfile),
		ledger: rec,
		bus:    bus,
		now:    time.Now,
	}
}

// Capture reads every zone of the devices matched by f and stores the result under
// name, replacing any previous profile of that name. A failing read aborts the capture.
func (m *Manager) Capture(name string, f mystic.Filter) (*Profile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("profile name must not be empty")
	}

	p := &Profile{
		Name:       name,
		CapturedAt: m.now().UTC(),
		Zones:      make(map[string]mystic.ZoneState),
	}
	for _, d := range m.ctrl.Devices(f) {
		for _, z := range d.ZonesFiltered(nil) {
			s, err := z.State()
			if err != nil {
				return nil, fmt.Errorf("read %s/%s: %w", d.Name(), z.Name(), err)
			}
			p.Zones[control.ZoneID(d.Name(), z.Name())] = s
		}
	}

	if err := m.store.Set(name, *p); err != nil {
		return nil, err
	}

	log.Info().Str("profile", name).Int("zones", len(p.Zones)).Msg("Profile captured")
	return p, nil
}

// Get returns a stored profile.
func (m *Manager) Get(name string) (*Profile, error) {
	p, ok, err := m.store.Get(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &p, nil
}

// Names lists stored profiles in order.
func (m *Manager) Names() ([]string, error) {
	return m.store.IDs()
}

// Delete removes a stored profile.
func (m *Manager) Delete(name string) error {
	deleted, err := m.store.Delete(name)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Apply writes every zone of a stored profile with SetState. It continues past
// failing zones and reports them in the result.
func (m *Manager) Apply(ctx context.Context, name string) (*Result, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	origin := control.OriginFrom(ctx)
	ctx = control.WithOrigin(ctx, origin.Source, origin.CorrelationID)

	ids := make([]string, 0, len(p.Zones))
	for id := range p.Zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := &Result{Profile: name, Applied: []string{}}
	for _, id := range ids {
		device, zone, _ := strings.Cut(id, "/")
		if _, err := m.ctrl.SetState(ctx, device, zone, p.Zones[id]); err != nil && !errors.Is(err, control.ErrReadBack) {
			if res.Failed == nil {
				res.Failed = make(map[string]string)
			}
			res.Failed[id] = err.Error()
			continue
		}
		res.Applied = append(res.Applied, id)
	}

	if m.ledger != nil {
		if err := m.ledger.Append(ledger.Record{
			EventType:     ledger.EventProfileApplied,
			Payload:       map[string]any{"profile": name, "applied": len(res.Applied), "failed": len(res.Failed)},
			Source:        origin.Source,
			CorrelationID: origin.CorrelationID,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to append ledger entry")
		}
	}
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeProfileApplied,
			Data: map[string]any{"profile": name, "applied": len(res.Applied), "failed": len(res.Failed)},
		})
	}

	log.Info().
		Str("profile", name).
		Int("applied", len(res.Applied)).
		Int("failed", len(res.Failed)).
		Msg("Profile applied")
	return res, nil
}
