package mystic

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/oleaut"
)

// LightZone is one independently controllable lighting region of a device.
//
// Its name and capabilities are resolved once. Dynamic state lives in the native
// library and is fetched on every State call.
type LightZone struct {
	handle *Handle
	policy LevelPolicy

	deviceName string
	index      uint32

	name      string
	styles    StringSet
	maxBright uint32
	maxSpeed  uint32
}

// resolveZone reads the zone's name and capabilities. The caller holds the lock.
func resolveZone(h *Handle, lib Library, m *Marshaller, policy LevelPolicy, deviceName string, index uint32) (*LightZone, error) {
	z := &LightZone{
		handle:     h,
		policy:     policy,
		deviceName: deviceName,
		index:      index,
	}

	err := m.WithHandle(deviceName, func(device oleaut.BSTR) error {
		var name oleaut.BSTR
		var styles oleaut.SafeArray

		if err := call(procGetLedInfo, func() (Status, error) {
			return lib.GetLedInfo(device, index, &name, &styles)
		}); err != nil {
			return err
		}
		defer m.DestroyArray(styles)

		if err := call(procGetLedMaxBright, func() (Status, error) {
			return lib.GetLedMaxBright(device, index, &z.maxBright)
		}); err != nil {
			return err
		}
		if err := call(procGetLedMaxSpeed, func() (Status, error) {
			return lib.GetLedMaxSpeed(device, index, &z.maxSpeed)
		}); err != nil {
			return err
		}

		set, err := m.StringSetFromArray(styles)
		if err != nil {
			return err
		}
		z.styles = set
		z.name = m.FromHandle(name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("device", deviceName).
		Uint32("index", index).
		Str("zone", z.name).
		Int("styles", len(z.styles)).
		Uint32("max_bright", z.maxBright).
		Uint32("max_speed", z.maxSpeed).
		Msg("Zone resolved")

	return z, nil
}

// call invokes one entry point and maps its status.
func call(op string, fn func() (Status, error)) error {
	status, err := fn()
	if err != nil {
		return err
	}
	if err := checkStatus(op, status); err != nil {
		log.Debug().Str("op", op).Int32("status", int32(status)).Msg("Native call failed")
		return err
	}
	return nil
}

// Name returns the zone name, unique within its device.
func (z *LightZone) Name() string { return z.name }

// DeviceName returns the name of the owning device.
func (z *LightZone) DeviceName() string { return z.deviceName }

// SupportedStyles returns the style names the zone accepts, sorted.
func (z *LightZone) SupportedStyles() []string { return z.styles.Sorted() }

// SupportsStyle reports whether style is in the zone's supported set.
func (z *LightZone) SupportsStyle(style string) bool { return z.styles.Contains(style) }

// MaxBright returns the highest brightness level the zone advertises.
func (z *LightZone) MaxBright() uint32 { return z.maxBright }

// MaxSpeed returns the highest speed level the zone advertises.
func (z *LightZone) MaxSpeed() uint32 { return z.maxSpeed }

// do runs fn with the device name marshalled, under the lock.
func (z *LightZone) do(fn func(lib Library, m *Marshaller, device oleaut.BSTR) error) error {
	return z.handle.Do(func(lib Library, m *Marshaller) error {
		return m.WithHandle(z.deviceName, func(device oleaut.BSTR) error {
			return fn(lib, m, device)
		})
	})
}

// State reads style, color, speed and brightness in one critical section. The
// first failing read aborts the whole operation.
func (z *LightZone) State() (ZoneState, error) {
	var state ZoneState

	err := z.do(func(lib Library, m *Marshaller, device oleaut.BSTR) error {
		var style oleaut.BSTR
		if err := call(procGetLedStyle, func() (Status, error) {
			return lib.GetLedStyle(device, z.index, &style)
		}); err != nil {
			return err
		}
		c := &state.Color
		if err := call(procGetLedColor, func() (Status, error) {
			return lib.GetLedColor(device, z.index, &c.Red, &c.Green, &c.Blue)
		}); err != nil {
			return err
		}
		if err := call(procGetLedSpeed, func() (Status, error) {
			return lib.GetLedSpeed(device, z.index, &state.Speed)
		}); err != nil {
			return err
		}
		if err := call(procGetLedBright, func() (Status, error) {
			return lib.GetLedBright(device, z.index, &state.Bright)
		}); err != nil {
			return err
		}
		state.Style = m.FromHandle(style)
		return nil
	})
	if err != nil {
		return ZoneState{}, err
	}
	return state, nil
}

// SetStyle switches the zone to style. A style outside SupportedStyles fails with
// *NotSupportedStyleError before the native library is called.
func (z *LightZone) SetStyle(style string) error {
	if !z.styles.Contains(style) {
		return &NotSupportedStyleError{Style: style, Supported: z.styles.Sorted()}
	}

	return z.do(func(lib Library, m *Marshaller, device oleaut.BSTR) error {
		return m.WithHandle(style, func(s oleaut.BSTR) error {
			return call(procSetLedStyle, func() (Status, error) {
				return lib.SetLedStyle(device, z.index, s)
			})
		})
	})
}

// SetColor sets the zone color. Styles that ignore color make the SDK answer with
// ErrNotSupported; callers should treat that as an expected outcome.
func (z *LightZone) SetColor(color Color) error {
	return z.do(func(lib Library, _ *Marshaller, device oleaut.BSTR) error {
		return call(procSetLedColor, func() (Status, error) {
			return lib.SetLedColor(device, z.index, color.Red, color.Green, color.Blue)
		})
	})
}

// SetBright sets the brightness level, subject to the SDK's LevelPolicy.
func (z *LightZone) SetBright(level uint32) error {
	level, err := z.policy.check("bright", level, z.maxBright)
	if err != nil {
		return err
	}

	return z.do(func(lib Library, _ *Marshaller, device oleaut.BSTR) error {
		return call(procSetLedBright, func() (Status, error) {
			return lib.SetLedBright(device, z.index, level)
		})
	})
}

// SetSpeed sets the animation speed level, subject to the SDK's LevelPolicy.
func (z *LightZone) SetSpeed(level uint32) error {
	level, err := z.policy.check("speed", level, z.maxSpeed)
	if err != nil {
		return err
	}

	return z.do(func(lib Library, _ *Marshaller, device oleaut.BSTR) error {
		return call(procSetLedSpeed, func() (Status, error) {
			return lib.SetLedSpeed(device, z.index, level)
		})
	})
}

// SetState applies style, brightness, speed and color in that order. It stops at the
// first error, except that ErrNotSupported from the color step is ignored. Attributes
// applied before a failure stay applied.
func (z *LightZone) SetState(state ZoneState) error {
	return z.MergeState(state.Patch())
}

// MergeState applies only the fields present in patch, in the same order and with the
// same error handling as SetState. An empty patch makes no native call.
func (z *LightZone) MergeState(patch ZoneStatePatch) error {
	if patch.Style != nil {
		if err := z.SetStyle(*patch.Style); err != nil {
			return err
		}
	}
	if patch.Bright != nil {
		if err := z.SetBright(*patch.Bright); err != nil {
			return err
		}
	}
	if patch.Speed != nil {
		if err := z.SetSpeed(*patch.Speed); err != nil {
			return err
		}
	}
	if patch.Color != nil {
		if err := z.SetColor(*patch.Color); err != nil {
			if !IsNotSupported(err) {
				return err
			}
			log.Debug().
				Str("device", z.deviceName).
				Str("zone", z.name).
				Msg("Color not supported by current style, skipped")
		}
	}
	return nil
}

type zoneJSON struct {
	Name            string   `json:"name"`
	SupportedStyles []string `json:"supported_styles"`
	MaxBright       uint32   `json:"max_bright"`
	MaxSpeed        uint32   `json:"max_speed"`
}

// MarshalJSON encodes the zone's identity and capabilities.
func (z *LightZone) MarshalJSON() ([]byte, error) {
	return json.Marshal(zoneJSON{
		Name:            z.name,
		SupportedStyles: z.styles.Sorted(),
		MaxBright:       z.maxBright,
		MaxSpeed:        z.maxSpeed,
	})
}
