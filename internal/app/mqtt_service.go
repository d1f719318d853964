package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/config"
	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/mqtt"
)

// MQTTService connects the MQTT bridge to the broker.
type MQTTService struct {
	cfg     *config.Config
	ctrl    *control.Controller
	bus     mqtt.Bus
	actions mqtt.ActionRunner

	client *mqtt.Client
	Bridge *mqtt.Bridge
}

// NewMQTTService creates the service. Nothing connects until Start.
func NewMQTTService(cfg *config.Config, ctrl *control.Controller, bus mqtt.Bus, actions mqtt.ActionRunner) *MQTTService {
	return &MQTTService{cfg: cfg, ctrl: ctrl, bus: bus, actions: actions}
}

// Start connects to the broker and starts the bridge if MQTT is enabled.
func (s *MQTTService) Start(ctx context.Context) error {
	if !s.cfg.MQTT.Enabled {
		log.Debug().Msg("MQTT bridge disabled")
		return nil
	}

	client, err := mqtt.Connect(s.cfg.MQTT)
	if err != nil {
		return err
	}
	s.client = client

	s.Bridge = mqtt.NewBridge(client, s.ctrl, s.bus, s.actions, s.cfg.MQTT.TopicPrefix, s.cfg.MQTT.QoS)
	return s.Bridge.Start(ctx)
}

// Close disconnects from the broker.
func (s *MQTTService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Warn().Err(err).Msg("MQTT close error")
		}
	}
}
