// Package simulator implements the Mystic Light native contract in memory, for
// development on hosts without MSI hardware and for tests of the outer layers.
package simulator

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/mystic"
	"github.com/dokzlo13/mysticd/internal/oleaut"
)

type style struct {
	name  string
	color bool
	bstr  oleaut.BSTR
}

type zone struct {
	name      oleaut.BSTR
	styles    []string
	styleMap  map[string]*style
	maxBright uint32
	maxSpeed  uint32

	style  *style
	color  mystic.Color
	bright uint32
	speed  uint32
}

type device struct {
	zones []*zone
}

// Library is a simulated SDK. Strings it hands out are allocated once and stay owned
// by the library. Every array it hands out is fresh and belongs to the caller, like
// the real one.
type Library struct {
	mem *oleaut.Memory

	mu          sync.Mutex
	devices     map[string]*device
	deviceNames []string
	zoneCounts  []string
	initialized bool
	released    bool
	readFault   mystic.Status

	busy atomic.Bool
}

var _ mystic.Library = (*Library)(nil)

// New builds a simulated library from a fixture.
func New(f *Fixture) *Library {
	l := &Library{
		mem:     oleaut.NewMemory(),
		devices: make(map[string]*device, len(f.Devices)),
	}

	names := make([]string, 0, len(f.Devices))
	counts := make([]string, 0, len(f.Devices))
	for _, df := range f.Devices {
		d := &device{}
		for _, zf := range df.Zones {
			d.zones = append(d.zones, l.newZone(zf))
		}
		l.devices[df.Name] = d
		names = append(names, df.Name)
		counts = append(counts, strconv.Itoa(len(df.Zones)))
	}
	l.deviceNames = names
	l.zoneCounts = counts
	return l
}

func (l *Library) newZone(zf ZoneFixture) *zone {
	z := &zone{
		name:      l.mem.NewString(zf.Name),
		styleMap:  make(map[string]*style, len(zf.Styles)),
		maxBright: zf.MaxBright,
		maxSpeed:  zf.MaxSpeed,
		color:     zf.State.Color,
		bright:    zf.State.Bright,
		speed:     zf.State.Speed,
	}

	names := make([]string, 0, len(zf.Styles))
	for _, sf := range zf.Styles {
		s := &style{name: sf.Name, color: sf.HonorsColor(), bstr: l.mem.NewString(sf.Name)}
		z.styleMap[sf.Name] = s
		names = append(names, sf.Name)
	}
	z.styles = names

	if s, ok := z.styleMap[zf.State.Style]; ok {
		z.style = s
	} else {
		z.style = z.styleMap[names[0]]
	}
	return z
}

// enter flags overlapping calls. The real SDK corrupts itself in that case, so the
// simulator fails loudly instead.
func (l *Library) enter(op string) (mystic.Status, bool) {
	if !l.busy.CompareAndSwap(false, true) {
		log.Error().Str("op", op).Msg("Simulator entered concurrently")
		return mystic.StatusGeneric, false
	}

	l.mu.Lock()
	ready := l.initialized && !l.released
	l.mu.Unlock()

	if !ready && op != "MLAPI_Initialize" {
		l.busy.Store(false)
		return mystic.StatusNotInitialized, false
	}
	return mystic.StatusOK, true
}

func (l *Library) leave() { l.busy.Store(false) }

// FailReads makes every state getter return status until it is called again with
// StatusOK. Writes keep working.
func (l *Library) FailReads(status mystic.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readFault = status
}

// read resolves a zone for a state getter, applying any fault set by FailReads.
func (l *Library) read(op string, device oleaut.BSTR, index uint32) (*zone, mystic.Status) {
	z, status := l.lookup(op, device, index)
	if z == nil {
		return nil, status
	}

	l.mu.Lock()
	fault := l.readFault
	l.mu.Unlock()

	if fault != mystic.StatusOK {
		l.leave()
		return nil, fault
	}
	return z, mystic.StatusOK
}

// lookup resolves a device handle and zone index.
func (l *Library) lookup(op string, device oleaut.BSTR, index uint32) (*zone, mystic.Status) {
	status, ok := l.enter(op)
	if !ok {
		return nil, status
	}

	name := oleaut.Decode(l.mem.StringData(device))
	d, found := l.devices[name]
	if !found {
		l.leave()
		return nil, mystic.StatusDeviceNotFound
	}
	if int(index) >= len(d.zones) {
		l.leave()
		return nil, mystic.StatusInvalidArgument
	}
	return d.zones[index], mystic.StatusOK
}

func (l *Library) Initialize() (mystic.Status, error) {
	status, ok := l.enter("MLAPI_Initialize")
	if !ok {
		return status, nil
	}
	defer l.leave()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return mystic.StatusNotInitialized, nil
	}
	l.initialized = true
	return mystic.StatusOK, nil
}

func (l *Library) GetDeviceInfo(deviceTypes, ledCounts *oleaut.SafeArray) (mystic.Status, error) {
	status, ok := l.enter("MLAPI_GetDeviceInfo")
	if !ok {
		return status, nil
	}
	defer l.leave()

	*deviceTypes = l.mem.NewArray(l.deviceNames)
	*ledCounts = l.mem.NewArray(l.zoneCounts)
	return mystic.StatusOK, nil
}

func (l *Library) GetLedInfo(device oleaut.BSTR, index uint32, name *oleaut.BSTR, styles *oleaut.SafeArray) (mystic.Status, error) {
	z, status := l.lookup("MLAPI_GetLedInfo", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	*name = z.name
	*styles = l.mem.NewArray(z.styles)
	return mystic.StatusOK, nil
}

func (l *Library) GetLedMaxBright(device oleaut.BSTR, index uint32, level *uint32) (mystic.Status, error) {
	z, status := l.lookup("MLAPI_GetLedMaxBright", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	*level = z.maxBright
	return mystic.StatusOK, nil
}

func (l *Library) GetLedMaxSpeed(device oleaut.BSTR, index uint32, level *uint32) (mystic.Status, error) {
	z, status := l.lookup("MLAPI_GetLedMaxSpeed", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	*level = z.maxSpeed
	return mystic.StatusOK, nil
}

func (l *Library) GetLedStyle(device oleaut.BSTR, index uint32, style *oleaut.BSTR) (mystic.Status, error) {
	z, status := l.read("MLAPI_GetLedStyle", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	*style = z.style.bstr
	return mystic.StatusOK, nil
}

func (l *Library) GetLedColor(device oleaut.BSTR, index uint32, red, green, blue *uint32) (mystic.Status, error) {
	z, status := l.read("MLAPI_GetLedColor", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	*red, *green, *blue = z.color.Red, z.color.Green, z.color.Blue
	return mystic.StatusOK, nil
}

func (l *Library) GetLedBright(device oleaut.BSTR, index uint32, level *uint32) (mystic.Status, error) {
	z, status := l.read("MLAPI_GetLedBright", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	*level = z.bright
	return mystic.StatusOK, nil
}

func (l *Library) GetLedSpeed(device oleaut.BSTR, index uint32, level *uint32) (mystic.Status, error) {
	z, status := l.read("MLAPI_GetLedSpeed", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	*level = z.speed
	return mystic.StatusOK, nil
}

func (l *Library) SetLedStyle(device oleaut.BSTR, index uint32, style oleaut.BSTR) (mystic.Status, error) {
	z, status := l.lookup("MLAPI_SetLedStyle", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	s, ok := z.styleMap[oleaut.Decode(l.mem.StringData(style))]
	if !ok {
		return mystic.StatusInvalidArgument, nil
	}
	z.style = s
	return mystic.StatusOK, nil
}

func (l *Library) SetLedColor(device oleaut.BSTR, index uint32, red, green, blue uint32) (mystic.Status, error) {
	z, status := l.lookup("MLAPI_SetLedColor", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	if !z.style.color {
		return mystic.StatusNotSupported, nil
	}
	z.color = mystic.Color{Red: red, Green: green, Blue: blue}
	return mystic.StatusOK, nil
}

func (l *Library) SetLedBright(device oleaut.BSTR, index uint32, level uint32) (mystic.Status, error) {
	z, status := l.lookup("MLAPI_SetLedBright", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	if level > z.maxBright {
		return mystic.StatusInvalidArgument, nil
	}
	z.bright = level
	return mystic.StatusOK, nil
}

func (l *Library) SetLedSpeed(device oleaut.BSTR, index uint32, level uint32) (mystic.Status, error) {
	z, status := l.lookup("MLAPI_SetLedSpeed", device, index)
	if z == nil {
		return status, nil
	}
	defer l.leave()

	if level > z.maxSpeed {
		return mystic.StatusInvalidArgument, nil
	}
	z.speed = level
	return mystic.StatusOK, nil
}

// Automation returns the in-memory allocator backing the library's strings.
func (l *Library) Automation() oleaut.Automation { return l.mem }

// LiveArrays reports how many handed over arrays the caller has not destroyed yet.
func (l *Library) LiveArrays() int { return l.mem.LiveArrays() }

// Release marks the library unloaded. Later calls report NotInitialized.
func (l *Library) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

// Open builds a simulated library from fixture and opens an SDK session on it.
func Open(f *Fixture, opts ...mystic.Option) (*mystic.SDK, error) {
	return mystic.New(New(f), opts...)
}
