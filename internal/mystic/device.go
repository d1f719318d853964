package mystic

import (
	"encoding/json"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Device is one piece of lighting hardware reported by the SDK.
type Device struct {
	handle *Handle
	policy LevelPolicy

	name      string
	zoneCount uint32

	zones atomic.Pointer[map[string]*LightZone]
}

// resolveDevice builds a device and all its zones. The caller holds the lock.
func resolveDevice(h *Handle, lib Library, m *Marshaller, policy LevelPolicy, name string, zoneCount uint32) (*Device, error) {
	d := &Device{
		handle:    h,
		policy:    policy,
		name:      name,
		zoneCount: zoneCount,
	}
	zones, err := d.resolveZones(lib, m)
	if err != nil {
		return nil, err
	}
	d.zones.Store(&zones)
	return d, nil
}

// resolveZones resolves zones 0..zoneCount keyed by their reported names. When two
// indices report the same name the later one is kept.
func (d *Device) resolveZones(lib Library, m *Marshaller) (map[string]*LightZone, error) {
	zones := make(map[string]*LightZone, d.zoneCount)
	for i := uint32(0); i < d.zoneCount; i++ {
		z, err := resolveZone(d.handle, lib, m, d.policy, d.name, i)
		if err != nil {
			return nil, err
		}
		if prev, ok := zones[z.name]; ok {
			log.Warn().
				Str("device", d.name).
				Str("zone", z.name).
				Uint32("replaced_index", prev.index).
				Uint32("index", i).
				Msg("Duplicate zone name, keeping the later index")
		}
		zones[z.name] = z
	}
	return zones, nil
}

// Name returns the device name, unique within the SDK session.
func (d *Device) Name() string { return d.name }

// ZoneCount returns the number of distinct zones currently known.
func (d *Device) ZoneCount() int { return len(*d.zones.Load()) }

// Zones returns the zones keyed by name. The map is a copy.
func (d *Device) Zones() map[string]*LightZone {
	current := *d.zones.Load()
	out := make(map[string]*LightZone, len(current))
	for name, z := range current {
		out[name] = z
	}
	return out
}

// Zone returns the zone called name.
func (d *Device) Zone(name string) (*LightZone, bool) {
	z, ok := (*d.zones.Load())[name]
	return z, ok
}

// ZonesFiltered returns the zones matched by f, ordered by name. A nil filter matches all.
func (d *Device) ZonesFiltered(f Filter) []*LightZone {
	current := *d.zones.Load()
	out := make([]*LightZone, 0, len(current))
	for name, z := range current {
		if matches(f, name) {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Reload resolves every zone again and replaces the zone collection. Zones obtained
// earlier keep their old capability values. On error the collection is unchanged.
func (d *Device) Reload() error {
	zones, err := withLocked(d.handle, d.resolveZones)
	if err != nil {
		return err
	}
	d.zones.Store(&zones)

	log.Debug().Str("device", d.name).Int("zones", len(zones)).Msg("Device reloaded")
	return nil
}

type deviceJSON struct {
	Name  string       `json:"name"`
	Zones []*LightZone `json:"zones"`
}

// MarshalJSON encodes the device with its zones ordered by name.
func (d *Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(deviceJSON{
		Name:  d.name,
		Zones: d.ZonesFiltered(nil),
	})
}
