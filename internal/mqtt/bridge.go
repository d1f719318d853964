package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/eventbus"
	"github.com/dokzlo13/mysticd/internal/mystic"
)

// Source is the origin source of writes received over MQTT.
const Source = "mqtt"

// Transport is the part of Client the bridge uses.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// Bus is the part of the event bus the bridge uses.
type Bus interface {
	Subscribe(eventType eventbus.EventType, handler eventbus.Handler)
	Publish(e eventbus.Event)
}

// ActionRunner invokes script actions. It is optional.
type ActionRunner interface {
	InvokeAction(ctx context.Context, name string, args map[string]any) error
}

// StatePayload is published retained on a zone's state topic.
type StatePayload struct {
	Device string `json:"device"`
	Zone   string `json:"zone"`
	mystic.ZoneState
	Source string `json:"source,omitempty"`
}

// Bridge mirrors zone state to the broker and applies commands from it.
type Bridge struct {
	transport Transport
	ctrl      *control.Controller
	bus       Bus
	actions   ActionRunner
	topics    Topics
	qos       byte

	ctx context.Context
}

// NewBridge creates a bridge. bus and actions may be nil.
func NewBridge(t Transport, ctrl *control.Controller, bus Bus, actions ActionRunner, prefix string, qos byte) *Bridge {
	return &Bridge{
		transport: t,
		ctrl:      ctrl,
		bus:       bus,
		actions:   actions,
		topics:    Topics{Prefix: prefix},
		qos:       qos,
		ctx:       context.Background(),
	}
}

// Topics returns the topic layout of the bridge.
func (b *Bridge) Topics() Topics { return b.topics }

// Start subscribes to the command topics and the event bus, then publishes the
// current state of every zone. ctx bounds the writes started by commands.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx

	if err := b.transport.Subscribe(b.topics.AllZoneSets(), b.qos, b.HandleSet); err != nil {
		return err
	}
	if err := b.transport.Subscribe(b.topics.Reload(), b.qos, b.HandleReload); err != nil {
		return err
	}
	if b.actions != nil {
		if err := b.transport.Subscribe(b.topics.AllActions(), b.qos, b.HandleAction); err != nil {
			return err
		}
	}

	if b.bus != nil {
		b.bus.Subscribe(eventbus.EventTypeZoneChanged, b.onZoneChanged)
		b.bus.Subscribe(eventbus.EventTypeSessionReloaded, func(eventbus.Event) { b.PublishAll() })
	}

	b.PublishAll()
	log.Info().Str("prefix", b.topics.Prefix).Msg("MQTT bridge started")
	return nil
}

// PublishAll publishes the state of every zone. Zones that fail to read are skipped.
func (b *Bridge) PublishAll() {
	for _, d := range b.ctrl.Devices(nil) {
		for _, z := range d.ZonesFiltered(nil) {
			s, err := z.State()
			if err != nil {
				log.Debug().Err(err).Str("device", d.Name()).Str("zone", z.Name()).Msg("Skipping zone state publish")
				continue
			}
			b.publishState(d.Name(), z.Name(), s, "")
		}
	}
}

func (b *Bridge) onZoneChanged(e eventbus.Event) {
	device, _ := e.Data["device"].(string)
	zone, _ := e.Data["zone"].(string)
	s, ok := e.Data["state"].(mystic.ZoneState)
	if !ok || device == "" || zone == "" {
		return
	}
	source, _ := e.Data["source"].(string)
	b.publishState(device, zone, s, source)
}

func (b *Bridge) publishState(device, zone string, s mystic.ZoneState, source string) {
	if !ValidLevel(device) || !ValidLevel(zone) {
		log.Debug().Str("device", device).Str("zone", zone).Msg("Name is not a valid topic level, not publishing")
		return
	}
	data, err := json.Marshal(StatePayload{Device: device, Zone: zone, ZoneState: s, Source: source})
	if err != nil {
		return
	}
	if err := b.transport.Publish(b.topics.ZoneState(device, zone), data, b.qos, true); err != nil {
		log.Warn().Err(err).Str("device", device).Str("zone", zone).Msg("Failed to publish zone state")
	}
}

// HandleSet applies a JSON merge patch received on a zone command topic. An empty
// object republishes the zone's state.
func (b *Bridge) HandleSet(topic string, payload []byte) error {
	device, zone, ok := b.topics.ParseZoneSet(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	ctx := control.WithOrigin(b.ctx, Source, "")
	b.announce(ctx, topic, payload)

	var patch mystic.ZoneStatePatch
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return fmt.Errorf("decode patch for %s/%s: %w", device, zone, err)
	}

	s, err := b.ctrl.MergeState(ctx, device, zone, patch)
	if err != nil {
		return fmt.Errorf("merge state %s/%s: %w", device, zone, err)
	}
	if patch.IsEmpty() {
		b.publishState(device, zone, s, Source)
	}
	return nil
}

// HandleReload runs discovery again.
func (b *Bridge) HandleReload(topic string, payload []byte) error {
	ctx := control.WithOrigin(b.ctx, Source, "")
	b.announce(ctx, topic, payload)
	return b.ctrl.Reload(ctx)
}

// HandleAction invokes the script action named by the topic with the JSON object
// payload as arguments. An empty payload passes no arguments.
func (b *Bridge) HandleAction(topic string, payload []byte) error {
	name, ok := b.topics.ParseAction(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	if b.actions == nil {
		return errors.New("actions are not available")
	}

	ctx := control.WithOrigin(b.ctx, Source, "")
	b.announce(ctx, topic, payload)

	args := map[string]any{}
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &args); err != nil {
			return fmt.Errorf("decode args for action %s: %w", name, err)
		}
	}
	return b.actions.InvokeAction(ctx, name, args)
}

func (b *Bridge) announce(ctx context.Context, topic string, payload []byte) {
	if b.bus == nil {
		return
	}
	origin := control.OriginFrom(ctx)
	b.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeMQTTCommand,
		Data: map[string]any{
			"topic":          topic,
			"payload":        strings.TrimSpace(string(payload)),
			"source":         origin.Source,
			"correlation_id": origin.CorrelationID,
		},
	})
}
