package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "home/mystic"}

	assert.Equal(t, "home/mystic/status", topics.Status())
	assert.Equal(t, "home/mystic/MSI_MB/JRGB1/state", topics.ZoneState("MSI_MB", "JRGB1"))
	assert.Equal(t, "home/mystic/+/+/set", topics.AllZoneSets())
	assert.Equal(t, "home/mystic/reload", topics.Reload())
	assert.Equal(t, "home/mystic/action/+", topics.AllActions())
}

func TestParseZoneSet(t *testing.T) {
	topics := Topics{Prefix: "mystic"}

	tests := []struct {
		topic  string
		device string
		zone   string
		ok     bool
	}{
		{topics.ZoneSet("MSI_MB", "JRGB1"), "MSI_MB", "JRGB1", true},
		{"mystic/MSI_MB/JRGB1/state", "", "", false},
		{"mystic/MSI_MB/set", "", "", false},
		{"mystic//JRGB1/set", "", "", false},
		{"other/MSI_MB/JRGB1/set", "", "", false},
		{"mystic/MSI_MB/JRGB1/x/set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			device, zone, ok := topics.ParseZoneSet(tt.topic)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.device, device)
			assert.Equal(t, tt.zone, zone)
		})
	}
}

func TestParseAction(t *testing.T) {
	topics := Topics{Prefix: "mystic"}

	name, ok := topics.ParseAction(topics.Action("lights_off"))
	assert.True(t, ok)
	assert.Equal(t, "lights_off", name)

	_, ok = topics.ParseAction("mystic/action/")
	assert.False(t, ok)
	_, ok = topics.ParseAction("mystic/action/a/b")
	assert.False(t, ok)
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("MSI_MB"))
	assert.False(t, ValidLevel(""))
	assert.False(t, ValidLevel("a/b"))
	assert.False(t, ValidLevel("a+"))
	assert.False(t, ValidLevel("#"))
}
