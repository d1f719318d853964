package mystic

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStub(t *testing.T, stub *stubLibrary, opts ...Option) *SDK {
	t.Helper()
	sdk, err := New(stub, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sdk.Close() })
	return sdk
}

func stubZoneFor(t *testing.T, sdk *SDK, device, zone string) *LightZone {
	t.Helper()
	d, ok := sdk.Device(device)
	require.True(t, ok, "device %s", device)
	z, ok := d.Zone(zone)
	require.True(t, ok, "zone %s", zone)
	return z
}

func singleZoneStub() (*stubLibrary, *stubZone) {
	z := defaultZone("JRGB1")
	return newStub(&stubDevice{name: "MSI_MB", zones: []*stubZone{z}}), z
}

func TestZoneCapabilities(t *testing.T) {
	stub, _ := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	assert.Equal(t, "JRGB1", z.Name())
	assert.Equal(t, "MSI_MB", z.DeviceName())
	assert.Equal(t, []string{"Breathing", "NoAnimation", "Static"}, z.SupportedStyles())
	assert.True(t, z.SupportsStyle("Static"))
	assert.False(t, z.SupportsStyle("Rainbow"))
	assert.Equal(t, uint32(100), z.MaxBright())
	assert.Equal(t, uint32(3), z.MaxSpeed())
}

func TestZoneState(t *testing.T) {
	stub, _ := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	state, err := z.State()
	require.NoError(t, err)
	assert.Equal(t, ZoneState{Style: "Static", Color: Color{Red: 255}, Bright: 50, Speed: 1}, state)
	assert.Zero(t, stub.leaked())
}

func TestZoneStateAbortsOnFirstFailure(t *testing.T) {
	stub, _ := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	stub.failWith(procGetLedColor, StatusTimeout)

	state, err := z.State()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, ZoneState{}, state)
	assert.Zero(t, stub.callCount(procGetLedSpeed))
	assert.Zero(t, stub.callCount(procGetLedBright))
	assert.Zero(t, stub.leaked())
}

func TestSetStyleRejectsUnsupportedWithoutNativeCall(t *testing.T) {
	stub, _ := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")
	before := stub.totalCalls()

	err := z.SetStyle("Rainbow")

	var styleErr *NotSupportedStyleError
	require.ErrorAs(t, err, &styleErr)
	assert.Equal(t, "Rainbow", styleErr.Style)
	assert.Equal(t, []string{"Breathing", "NoAnimation", "Static"}, styleErr.Supported)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Equal(t, before, stub.totalCalls())
}

func TestSetStyle(t *testing.T) {
	stub, sz := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	require.NoError(t, z.SetStyle("Breathing"))
	assert.Equal(t, "Breathing", sz.state.Style)
	assert.Zero(t, stub.leaked())
}

func TestSetColorNotSupported(t *testing.T) {
	stub, sz := singleZoneStub()
	sz.styles = []string{"Static", "NoAnimation"}
	sz.state.Style = "NoAnimation"
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	err := z.SetColor(Color{Green: 255})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, StatusNotSupported, statusErr.Status)

	state := sz.state
	state.Color = Color{Green: 255}
	assert.NoError(t, z.SetState(state))

	green := Color{Green: 255}
	assert.NoError(t, z.MergeState(ZoneStatePatch{Color: &green}))
	assert.Equal(t, Color{Red: 255}, sz.state.Color)
}

func TestSetBrightOutOfRange(t *testing.T) {
	tests := []struct {
		name       string
		policy     LevelPolicy
		level      uint32
		wantErr    bool
		wantCalls  int
		wantBright uint32
	}{
		{"within range", LevelPolicyReject, 100, false, 1, 100},
		{"reject", LevelPolicyReject, 101, true, 0, 50},
		{"forward", LevelPolicyForward, 150, false, 1, 150},
		{"clamp", LevelPolicyClamp, 150, false, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub, sz := singleZoneStub()
			z := stubZoneFor(t, openStub(t, stub, WithLevelPolicy(tt.policy)), "MSI_MB", "JRGB1")

			err := z.SetBright(tt.level)
			if tt.wantErr {
				var levelErr *LevelOutOfRangeError
				require.ErrorAs(t, err, &levelErr)
				assert.Equal(t, uint32(100), levelErr.Max)
				assert.True(t, IsUsage(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, stub.callCount(procSetLedBright))
			assert.Equal(t, tt.wantBright, sz.state.Bright)
		})
	}
}

func TestSetSpeedOutOfRange(t *testing.T) {
	stub, _ := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	assert.ErrorIs(t, z.SetSpeed(4), ErrUsage)
	assert.Zero(t, stub.callCount(procSetLedSpeed))
	assert.NoError(t, z.SetSpeed(3))
	assert.Equal(t, 1, stub.callCount(procSetLedSpeed))
}

func TestStateRoundTrip(t *testing.T) {
	stub, _ := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	for _, style := range z.SupportedStyles() {
		require.NoError(t, z.SetStyle(style))

		before, err := z.State()
		require.NoError(t, err)
		require.NoError(t, z.SetState(before))
		after, err := z.State()
		require.NoError(t, err)

		assert.Equal(t, before.Style, after.Style)
		assert.Equal(t, before.Bright, after.Bright)
		assert.Equal(t, before.Speed, after.Speed)
	}
}

func TestSetStateOrder(t *testing.T) {
	stub, sz := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	// A failing speed write stops before color; style and bright stay applied.
	stub.failWith(procSetLedSpeed, StatusGeneric)
	err := z.SetState(ZoneState{Style: "Breathing", Color: Color{Blue: 9}, Bright: 10, Speed: 2})

	assert.ErrorIs(t, err, ErrGeneric)
	assert.Equal(t, "Breathing", sz.state.Style)
	assert.Equal(t, uint32(10), sz.state.Bright)
	assert.Equal(t, uint32(1), sz.state.Speed)
	assert.Equal(t, Color{Red: 255}, sz.state.Color)
	assert.Zero(t, stub.callCount(procSetLedColor))
}

func TestSetStateColorErrorOtherThanNotSupported(t *testing.T) {
	stub, _ := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	stub.failWith(procSetLedColor, StatusTimeout)
	err := z.SetState(ZoneState{Style: "Static", Color: Color{Blue: 9}, Bright: 10, Speed: 2})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMergeStateEmptyPatch(t *testing.T) {
	stub, sz := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")
	before := stub.totalCalls()
	state := sz.state

	require.NoError(t, z.MergeState(ZoneStatePatch{}))
	assert.Equal(t, before, stub.totalCalls())
	assert.Equal(t, state, sz.state)
}

func TestMergeStatePartial(t *testing.T) {
	stub, sz := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	bright := uint32(80)
	require.NoError(t, z.MergeState(ZoneStatePatch{Bright: &bright}))

	assert.Equal(t, uint32(80), sz.state.Bright)
	assert.Equal(t, 1, stub.callCount(procSetLedBright))
	assert.Zero(t, stub.callCount(procSetLedStyle))
	assert.Zero(t, stub.callCount(procSetLedSpeed))
	assert.Zero(t, stub.callCount(procSetLedColor))
}

func TestConcurrentStateReadsDoNotInterleave(t *testing.T) {
	a := defaultZone("JRGB1")
	b := defaultZone("JRAINBOW1")
	b.state = ZoneState{Style: "Breathing", Color: Color{Blue: 200}, Bright: 20, Speed: 2}
	stub := newStub(&stubDevice{name: "MSI_MB", zones: []*stubZone{a, b}})
	sdk := openStub(t, stub)
	stub.delay = 50 * time.Microsecond

	za := stubZoneFor(t, sdk, "MSI_MB", "JRGB1")
	zb := stubZoneFor(t, sdk, "MSI_MB", "JRAINBOW1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			state, err := za.State()
			assert.NoError(t, err)
			assert.Equal(t, a.state, state)
		}()
		go func() {
			defer wg.Done()
			state, err := zb.State()
			assert.NoError(t, err)
			assert.Equal(t, b.state, state)
		}()
	}
	wg.Wait()

	assert.Zero(t, stub.overlaps.Load())
}

func TestZoneAfterClose(t *testing.T) {
	stub, _ := singleZoneStub()
	sdk := openStub(t, stub)
	z := stubZoneFor(t, sdk, "MSI_MB", "JRGB1")

	require.NoError(t, sdk.Close())
	_, err := z.State()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestZoneMarshalJSON(t *testing.T) {
	stub, _ := singleZoneStub()
	z := stubZoneFor(t, openStub(t, stub), "MSI_MB", "JRGB1")

	data, err := json.Marshal(z)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "JRGB1",
		"supported_styles": ["Breathing", "NoAnimation", "Static"],
		"max_bright": 100,
		"max_speed": 3
	}`, string(data))
}
