package mystic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceZones(t *testing.T) {
	sdk := openStub(t, newStub(&stubDevice{
		name:  "KB",
		zones: []*stubZone{defaultZone("LOGO"), defaultZone("KEYS")},
	}))
	d, ok := sdk.Device("KB")
	require.True(t, ok)

	assert.Equal(t, "KB", d.Name())
	assert.Equal(t, 2, d.ZoneCount())

	zones := d.Zones()
	assert.Len(t, zones, 2)
	delete(zones, "LOGO")
	assert.Equal(t, 2, d.ZoneCount(), "Zones must return a copy")

	_, ok = d.Zone("MISSING")
	assert.False(t, ok)

	var names []string
	for _, z := range d.ZonesFiltered(nil) {
		names = append(names, z.Name())
	}
	assert.Equal(t, []string{"KEYS", "LOGO"}, names)

	filtered := d.ZonesFiltered(Names("LOGO", "OTHER"))
	require.Len(t, filtered, 1)
	assert.Equal(t, "LOGO", filtered[0].Name())
}

func TestDeviceDuplicateZoneNameLastWins(t *testing.T) {
	first := defaultZone("JRGB")
	second := defaultZone("JRGB")
	second.maxBright = 7
	sdk := openStub(t, newStub(&stubDevice{name: "MB", zones: []*stubZone{first, second}}))

	d, _ := sdk.Device("MB")
	assert.Equal(t, 1, d.ZoneCount())
	z, ok := d.Zone("JRGB")
	require.True(t, ok)
	assert.Equal(t, uint32(7), z.MaxBright())
	assert.Equal(t, uint32(1), z.index)
}

func TestDeviceReload(t *testing.T) {
	sz := defaultZone("JRGB1")
	stub := newStub(&stubDevice{name: "MB", zones: []*stubZone{sz}})
	sdk := openStub(t, stub)
	d, _ := sdk.Device("MB")
	old, _ := d.Zone("JRGB1")

	sz.styles = []string{"Static"}
	sz.maxSpeed = 9
	require.NoError(t, d.Reload())

	fresh, _ := d.Zone("JRGB1")
	assert.NotSame(t, old, fresh)
	assert.Equal(t, []string{"Static"}, fresh.SupportedStyles())
	assert.Equal(t, uint32(9), fresh.MaxSpeed())

	assert.Equal(t, []string{"Breathing", "NoAnimation", "Static"}, old.SupportedStyles())
	assert.Equal(t, uint32(3), old.MaxSpeed())
	assert.Zero(t, stub.leaked())
}

func TestDeviceReloadFailureKeepsZones(t *testing.T) {
	stub := newStub(&stubDevice{name: "MB", zones: []*stubZone{defaultZone("JRGB1")}})
	sdk := openStub(t, stub)
	d, _ := sdk.Device("MB")

	stub.failWith(procGetLedInfo, StatusDeviceNotFound)
	assert.ErrorIs(t, d.Reload(), ErrDeviceNotFound)
	assert.Equal(t, 1, d.ZoneCount())
}
