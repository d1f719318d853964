package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "./mysticd.sqlite", cfg.Database.Path)
	assert.Equal(t, mystic.LevelPolicyReject, cfg.SDK.Policy())
	assert.Equal(t, "127.0.0.1:8420", cfg.API.Addr())
	assert.Equal(t, "mystic", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
	assert.Equal(t, 4, cfg.EventBus.GetWorkers())
	assert.Equal(t, 100, cfg.EventBus.GetQueueSize())
	assert.Empty(t, cfg.Script)
}

func TestParseValues(t *testing.T) {
	t.Setenv("MYSTICD_BROKER", "tcp://broker:1883")

	cfg, err := Parse([]byte(`
sdk:
  simulate: true
  level_policy: clamp
  restore_on_start: true
api:
  enabled: true
  port: 9000
  request_timeout: 2s
mqtt:
  enabled: true
  broker: ${MYSTICD_BROKER}
  username: ${MYSTICD_USER:guest}
  qos: 2
scheduler:
  timezone: UTC
shutdown_timeout: 1m
`))
	require.NoError(t, err)

	assert.True(t, cfg.SDK.Simulate)
	assert.True(t, cfg.SDK.RestoreOnStart)
	assert.Equal(t, mystic.LevelPolicyClamp, cfg.SDK.Policy())
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 2*time.Second, cfg.API.RequestTimeout.Duration())
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "guest", cfg.MQTT.Username)
	assert.Equal(t, byte(2), cfg.MQTT.QoS)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, time.Minute, cfg.ShutdownTimeout.Duration())
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"policy", "sdk: {level_policy: saturate}", "sdk.level_policy"},
		{"port", "api: {port: 70000}", "api.port"},
		{"broker", "mqtt: {enabled: true}", "mqtt.broker"},
		{"qos", "mqtt: {qos: 3}", "mqtt.qos"},
		{"prefix", "mqtt: {topic_prefix: 'a/#'}", "mqtt.topic_prefix"},
		{"cleanup", "ledger: {cleanup_interval: -1h}", "ledger.cleanup_interval"},
		{"timezone", "scheduler: {timezone: Mars/Olympus}", "scheduler.timezone"},
		{"duration", "shutdown_timeout: soon", "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mysticd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("script: main.lua\nsdk:\n  fixture: /abs/rig.yaml\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main.lua"), cfg.Script)
	assert.Equal(t, "/abs/rig.yaml", cfg.SDK.Fixture)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
