// Package control is the single entry point through which the HTTP API, Lua scripts
// and the MQTT bridge read and write zones. It records every write in the ledger and
// announces changes on the event bus.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/eventbus"
	"github.com/dokzlo13/mysticd/internal/ledger"
	"github.com/dokzlo13/mysticd/internal/mystic"
)

// Errors for names that do not resolve against the current device snapshot.
var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrUnknownZone   = errors.New("unknown zone")
)

// ErrReadBack wraps the read error when a write succeeded but the zone state could not
// be read afterwards. The write has reached the hardware; nothing was saved or published.
var ErrReadBack = errors.New("zone state unreadable after write")

// Recorder appends ledger entries.
type Recorder interface {
	Append(r ledger.Record) error
}

// Publisher publishes events.
type Publisher interface {
	Publish(e eventbus.Event)
}

// StateSaver remembers the last state written to each zone.
type StateSaver interface {
	Set(id string, value mystic.ZoneState) error
}

// Controller wraps an SDK session with bookkeeping. Recorder, Publisher and
// StateSaver are optional.
type Controller struct {
	sdk    *mystic.SDK
	ledger Recorder
	bus    Publisher
	saver  StateSaver

	zoneLocks sync.Map // ZoneID -> *sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithLedger records every write and reload.
func WithLedger(r Recorder) Option {
	return func(c *Controller) { c.ledger = r }
}

// WithPublisher announces zone changes and reloads.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.bus = p }
}

// WithStateSaver persists the state read back after each write.
func WithStateSaver(s StateSaver) Option {
	return func(c *Controller) { c.saver = s }
}

// New creates a controller over sdk.
func New(sdk *mystic.SDK, opts ...Option) *Controller {
	c := &Controller{sdk: sdk}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SDK returns the underlying session.
func (c *Controller) SDK() *mystic.SDK { return c.sdk }

// ZoneID is the key used for a zone in stores and topics.
func ZoneID(device, zone string) string {
	return device + "/" + zone
}

// Devices returns the devices matched by f, ordered by name.
func (c *Controller) Devices(f mystic.Filter) []*mystic.Device {
	return c.sdk.DevicesFiltered(f)
}

// Device resolves a device by name.
func (c *Controller) Device(name string) (*mystic.Device, error) {
	d, ok := c.sdk.Device(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return d, nil
}

// Zone resolves a zone by device and zone name.
func (c *Controller) Zone(device, zone string) (*mystic.LightZone, error) {
	d, err := c.Device(device)
	if err != nil {
		return nil, err
	}
	z, ok := d.Zone(zone)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownZone, device, zone)
	}
	return z, nil
}

// State reads the current state of a zone.
func (c *Controller) State(device, zone string) (mystic.ZoneState, error) {
	z, err := c.Zone(device, zone)
	if err != nil {
		return mystic.ZoneState{}, err
	}
	return z.State()
}

// SetStyle switches a zone's style.
func (c *Controller) SetStyle(ctx context.Context, device, zone, style string) (mystic.ZoneState, error) {
	return c.write(ctx, device, zone, "set_style", map[string]any{"style": style}, func(z *mystic.LightZone) error {
		return z.SetStyle(style)
	})
}

// SetColor sets a zone's color. ErrNotSupported is returned unchanged.
func (c *Controller) SetColor(ctx context.Context, device, zone string, color mystic.Color) (mystic.ZoneState, error) {
	return c.write(ctx, device, zone, "set_color", map[string]any{"color": color.String()}, func(z *mystic.LightZone) error {
		return z.SetColor(color)
	})
}

// SetBright sets a zone's brightness level.
func (c *Controller) SetBright(ctx context.Context, device, zone string, level uint32) (mystic.ZoneState, error) {
	return c.write(ctx, device, zone, "set_bright", map[string]any{"bright": level}, func(z *mystic.LightZone) error {
		return z.SetBright(level)
	})
}

// SetSpeed sets a zone's speed level.
func (c *Controller) SetSpeed(ctx context.Context, device, zone string, level uint32) (mystic.ZoneState, error) {
	return c.write(ctx, device, zone, "set_speed", map[string]any{"speed": level}, func(z *mystic.LightZone) error {
		return z.SetSpeed(level)
	})
}

// SetState applies a full state.
func (c *Controller) SetState(ctx context.Context, device, zone string, s mystic.ZoneState) (mystic.ZoneState, error) {
	return c.write(ctx, device, zone, "set_state", statePayload(s.Patch()), func(z *mystic.LightZone) error {
		return z.SetState(s)
	})
}

// MergeState applies the fields present in patch. An empty patch only reads the state.
func (c *Controller) MergeState(ctx context.Context, device, zone string, patch mystic.ZoneStatePatch) (mystic.ZoneState, error) {
	if patch.IsEmpty() {
		return c.State(device, zone)
	}
	return c.write(ctx, device, zone, "merge_state", statePayload(patch), func(z *mystic.LightZone) error {
		return z.MergeState(patch)
	})
}

// lockZone serializes writes to one zone so saved and published states follow the
// order in which writes reached the hardware.
func (c *Controller) lockZone(id string) func() {
	v, _ := c.zoneLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// write runs fn against the zone, records the outcome and, on success, reads the
// state back, persists it and publishes it. A failed read-back returns ErrReadBack.
func (c *Controller) write(ctx context.Context, device, zone, op string, args map[string]any, fn func(*mystic.LightZone) error) (mystic.ZoneState, error) {
	origin := OriginFrom(ctx)

	z, err := c.Zone(device, zone)
	if err != nil {
		return mystic.ZoneState{}, err
	}

	unlock := c.lockZone(ZoneID(device, zone))
	defer unlock()

	payload := map[string]any{"op": op}
	for k, v := range args {
		payload[k] = v
	}

	if err := fn(z); err != nil {
		eventType := ledger.EventZoneWriteFailed
		if mystic.IsNotSupported(err) {
			eventType = ledger.EventZoneWriteUnsupported
		}
		payload["error"] = err.Error()
		c.record(ledger.Record{
			EventType:     eventType,
			Device:        device,
			Zone:          zone,
			Payload:       payload,
			Source:        origin.Source,
			CorrelationID: origin.CorrelationID,
		})

		log.Debug().Err(err).
			Str("device", device).
			Str("zone", zone).
			Str("op", op).
			Str("source", origin.Source).
			Msg("Zone write failed")
		return mystic.ZoneState{}, err
	}

	c.record(ledger.Record{
		EventType:     ledger.EventZoneWriteOK,
		Device:        device,
		Zone:          zone,
		Payload:       payload,
		Source:        origin.Source,
		CorrelationID: origin.CorrelationID,
	})

	current, err := z.State()
	if err != nil {
		log.Warn().Err(err).Str("device", device).Str("zone", zone).Msg("Failed to read zone state after write")
		return mystic.ZoneState{}, fmt.Errorf("%w: %w", ErrReadBack, err)
	}

	if c.saver != nil {
		if err := c.saver.Set(ZoneID(device, zone), current); err != nil {
			log.Warn().Err(err).Str("device", device).Str("zone", zone).Msg("Failed to persist zone state")
		}
	}
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeZoneChanged,
			Data: map[string]any{
				"device":         device,
				"zone":           zone,
				"state":          current,
				"source":         origin.Source,
				"correlation_id": origin.CorrelationID,
			},
		})
	}

	log.Info().
		Str("device", device).
		Str("zone", zone).
		Str("op", op).
		Str("style", current.Style).
		Str("color", current.Color.String()).
		Uint32("bright", current.Bright).
		Uint32("speed", current.Speed).
		Str("source", origin.Source).
		Msg("Zone updated")
	return current, nil
}

// Reload runs discovery again.
func (c *Controller) Reload(ctx context.Context) error {
	origin := OriginFrom(ctx)

	if err := c.sdk.Reload(); err != nil {
		c.record(ledger.Record{
			EventType:     ledger.EventSessionReloadFailed,
			Payload:       map[string]any{"error": err.Error()},
			Source:        origin.Source,
			CorrelationID: origin.CorrelationID,
		})
		return err
	}

	count := len(c.sdk.Devices())
	c.record(ledger.Record{
		EventType:     ledger.EventSessionReloaded,
		Payload:       map[string]any{"devices": count},
		Source:        origin.Source,
		CorrelationID: origin.CorrelationID,
	})
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeSessionReloaded,
			Data: map[string]any{"devices": count, "source": origin.Source},
		})
	}
	return nil
}

func (c *Controller) record(r ledger.Record) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.Append(r); err != nil {
		log.Warn().Err(err).Str("event_type", string(r.EventType)).Msg("Failed to append ledger entry")
	}
}

func statePayload(p mystic.ZoneStatePatch) map[string]any {
	out := map[string]any{}
	if p.Style != nil {
		out["style"] = *p.Style
	}
	if p.Color != nil {
		out["color"] = p.Color.String()
	}
	if p.Bright != nil {
		out["bright"] = *p.Bright
	}
	if p.Speed != nil {
		out["speed"] = *p.Speed
	}
	return out
}
