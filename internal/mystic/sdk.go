package mystic

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/oleaut"
)

// SessionState is the lifecycle stage of an SDK session.
type SessionState int32

const (
	SessionOpening SessionState = iota
	SessionReady
	SessionReloading
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionOpening:
		return "opening"
	case SessionReady:
		return "ready"
	case SessionReloading:
		return "reloading"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// SDK is an initialized Mystic Light session and the devices it discovered.
//
// All methods are safe for concurrent use. Calls into the native library from any
// device or zone of the session are serialized by a single lock.
type SDK struct {
	handle *Handle
	opts   options
	path   string

	state    atomic.Int32
	reloadMu sync.Mutex

	devices atomic.Pointer[map[string]*Device]
}

// Open loads the SDK binary at path, initializes it and discovers every device and
// zone. On failure nothing stays loaded.
func Open(path string, opts ...Option) (*SDK, error) {
	lib, err := LoadLibrary(path)
	if err != nil {
		return nil, err
	}
	sdk, err := New(lib, opts...)
	if err != nil {
		return nil, err
	}
	sdk.path = path
	return sdk, nil
}

// New initializes an already loaded library and runs discovery. The SDK takes
// ownership of lib and releases it on Close, or immediately if New fails.
func New(lib Library, opts ...Option) (*SDK, error) {
	s := &SDK{handle: newHandle(lib)}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.state.Store(int32(SessionOpening))

	devices, err := withLocked(s.handle, func(lib Library, m *Marshaller) (map[string]*Device, error) {
		if err := call(procInitialize, lib.Initialize); err != nil {
			return nil, err
		}
		return s.discover(lib, m)
	})
	if err != nil {
		if cerr := s.handle.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release native library")
		}
		return nil, err
	}

	s.devices.Store(&devices)
	s.state.Store(int32(SessionReady))

	log.Info().
		Int("devices", len(devices)).
		Str("level_policy", s.opts.levelPolicy.String()).
		Msg("Mystic Light SDK initialized")
	return s, nil
}

// discover reads the device list and resolves every device. The caller holds the lock.
func (s *SDK) discover(lib Library, m *Marshaller) (map[string]*Device, error) {
	var types, counts oleaut.SafeArray
	if err := call(procGetDeviceInfo, func() (Status, error) {
		return lib.GetDeviceInfo(&types, &counts)
	}); err != nil {
		return nil, err
	}
	defer m.DestroyArray(types)
	defer m.DestroyArray(counts)

	names, err := m.StringsFromArray(types)
	if err != nil {
		return nil, err
	}
	zoneCounts, err := m.StringsFromArray(counts)
	if err != nil {
		return nil, err
	}
	if len(names) != len(zoneCounts) {
		log.Warn().
			Int("devices", len(names)).
			Int("zone_counts", len(zoneCounts)).
			Msg("Device info arrays differ in length, extra entries ignored")
	}

	devices := make(map[string]*Device, len(names))
	for i := 0; i < min(len(names), len(zoneCounts)); i++ {
		count, err := strconv.ParseUint(zoneCounts[i], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: zone count %q for device %s", ErrMalformedDeviceInfo, zoneCounts[i], names[i])
		}

		d, err := resolveDevice(s.handle, lib, m, s.opts.levelPolicy, names[i], uint32(count))
		if err != nil {
			return nil, fmt.Errorf("resolve device %s: %w", names[i], err)
		}
		if _, ok := devices[d.name]; ok {
			log.Warn().Str("device", d.name).Msg("Duplicate device name, keeping the later entry")
		}
		devices[d.name] = d

		log.Debug().Str("device", d.name).Int("zones", d.ZoneCount()).Msg("Device discovered")
	}
	return devices, nil
}

// Path returns the library path passed to Open, or "" for sessions built with New.
func (s *SDK) Path() string { return s.path }

// State returns the current lifecycle stage.
func (s *SDK) State() SessionState { return SessionState(s.state.Load()) }

// Poisoned reports whether a panic inside a native call invalidated the session.
func (s *SDK) Poisoned() bool { return s.handle.Poisoned() }

// LevelPolicy returns the policy applied to brightness and speed levels.
func (s *SDK) LevelPolicy() LevelPolicy { return s.opts.levelPolicy }

// Devices returns the devices keyed by name. The map is a copy.
func (s *SDK) Devices() map[string]*Device {
	current := *s.devices.Load()
	out := make(map[string]*Device, len(current))
	for name, d := range current {
		out[name] = d
	}
	return out
}

// Device returns the device called name.
func (s *SDK) Device(name string) (*Device, bool) {
	d, ok := (*s.devices.Load())[name]
	return d, ok
}

// DevicesFiltered returns the devices matched by f, ordered by name. A nil filter
// matches all.
func (s *SDK) DevicesFiltered(f Filter) []*Device {
	current := *s.devices.Load()
	out := make([]*Device, 0, len(current))
	for name, d := range current {
		if matches(f, name) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Reload runs discovery again and replaces the device collection. Devices and zones
// obtained earlier keep their old values. On error the collection is unchanged.
func (s *SDK) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if !s.state.CompareAndSwap(int32(SessionReady), int32(SessionReloading)) {
		return ErrClosed
	}
	defer s.state.CompareAndSwap(int32(SessionReloading), int32(SessionReady))

	devices, err := withLocked(s.handle, s.discover)
	if err != nil {
		return err
	}
	s.devices.Store(&devices)

	log.Info().Int("devices", len(devices)).Msg("Mystic Light SDK reloaded")
	return nil
}

// Close releases the native library. Devices and zones obtained from the session
// return ErrClosed afterwards. Closing twice is a no-op.
func (s *SDK) Close() error {
	s.state.Store(int32(SessionClosed))
	return s.handle.Close()
}

type sdkJSON struct {
	Devices []*Device `json:"devices"`
}

// MarshalJSON encodes every device ordered by name.
func (s *SDK) MarshalJSON() ([]byte, error) {
	return json.Marshal(sdkJSON{Devices: s.DevicesFiltered(nil)})
}
