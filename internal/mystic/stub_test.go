package mystic

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dokzlo13/mysticd/internal/oleaut"
)

type stubZone struct {
	name      string
	styles    []string
	colorless map[string]bool
	maxBright uint32
	maxSpeed  uint32
	state     ZoneState
}

type stubDevice struct {
	name  string
	zones []*stubZone
}

// stubLibrary is a Library over oleaut.Memory that counts calls, injects failures and
// records any overlap between two calls.
type stubLibrary struct {
	mem *oleaut.Memory

	mu       sync.Mutex
	devices  []*stubDevice
	counts   []string // overrides the zone counts reported by GetDeviceInfo
	calls    map[string]int
	fail     map[string]Status
	panicOn  string
	native   int
	released bool

	active   atomic.Int32
	overlaps atomic.Int32
	delay    time.Duration
}

func newStub(devices ...*stubDevice) *stubLibrary {
	return &stubLibrary{
		mem:     oleaut.NewMemory(),
		devices: devices,
		calls:   make(map[string]int),
		fail:    make(map[string]Status),
	}
}

// defaultZone is a zone whose "NoAnimation" style ignores color.
func defaultZone(name string) *stubZone {
	return &stubZone{
		name:      name,
		styles:    []string{"Static", "NoAnimation", "Breathing"},
		colorless: map[string]bool{"NoAnimation": true},
		maxBright: 100,
		maxSpeed:  3,
		state: ZoneState{
			Style:  "Static",
			Color:  Color{Red: 255, Green: 0, Blue: 0},
			Bright: 50,
			Speed:  1,
		},
	}
}

func (s *stubLibrary) enter(op string) (Status, bool) {
	if s.active.Add(1) != 1 {
		s.overlaps.Add(1)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.calls[op]++
	status, failing := s.fail[op]
	panicking := s.panicOn == op
	s.mu.Unlock()

	if panicking {
		s.active.Add(-1)
		panic("stub: " + op)
	}
	return status, failing
}

func (s *stubLibrary) leave() { s.active.Add(-1) }

func (s *stubLibrary) callCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubLibrary) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *stubLibrary) failWith(op string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = status
}

// leaked reports wrapper allocations and handed over arrays that were never released.
func (s *stubLibrary) leaked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.LiveStrings() - s.native + s.mem.LiveArrays()
}

func (s *stubLibrary) nativeString(v string) oleaut.BSTR {
	s.native++
	return s.mem.NewString(v)
}

// nativeArray hands over a fresh array. The caller owns it, so arrays left alive
// count as leaks.
func (s *stubLibrary) nativeArray(values []string) oleaut.SafeArray {
	return s.mem.NewArray(values)
}

func (s *stubLibrary) zone(device oleaut.BSTR, index uint32) (*stubZone, Status) {
	name := oleaut.Decode(s.mem.StringData(device))
	for _, d := range s.devices {
		if d.name != name {
			continue
		}
		if int(index) >= len(d.zones) {
			return nil, StatusInvalidArgument
		}
		return d.zones[index], StatusOK
	}
	return nil, StatusDeviceNotFound
}

func (s *stubLibrary) Initialize() (Status, error) {
	status, failing := s.enter(procInitialize)
	defer s.leave()
	if failing {
		return status, nil
	}
	return StatusOK, nil
}

func (s *stubLibrary) GetDeviceInfo(deviceTypes, ledCounts *oleaut.SafeArray) (Status, error) {
	status, failing := s.enter(procGetDeviceInfo)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.devices))
	counts := make([]string, 0, len(s.devices))
	for _, d := range s.devices {
		names = append(names, d.name)
		counts = append(counts, strconv.Itoa(len(d.zones)))
	}
	if s.counts != nil {
		counts = s.counts
	}
	*deviceTypes = s.nativeArray(names)
	*ledCounts = s.nativeArray(counts)
	return StatusOK, nil
}

func (s *stubLibrary) GetLedInfo(device oleaut.BSTR, index uint32, name *oleaut.BSTR, styles *oleaut.SafeArray) (Status, error) {
	status, failing := s.enter(procGetLedInfo)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	z, status := s.zone(device, index)
	if status != StatusOK {
		return status, nil
	}
	*name = s.nativeString(z.name)
	*styles = s.nativeArray(z.styles)
	return StatusOK, nil
}

func (s *stubLibrary) level(op string, device oleaut.BSTR, index uint32, get func(*stubZone) uint32, out *uint32) (Status, error) {
	status, failing := s.enter(op)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	z, status := s.zone(device, index)
	if status != StatusOK {
		return status, nil
	}
	*out = get(z)
	return StatusOK, nil
}

func (s *stubLibrary) GetLedMaxBright(device oleaut.BSTR, index uint32, level *uint32) (Status, error) {
	return s.level(procGetLedMaxBright, device, index, func(z *stubZone) uint32 { return z.maxBright }, level)
}

func (s *stubLibrary) GetLedMaxSpeed(device oleaut.BSTR, index uint32, level *uint32) (Status, error) {
	return s.level(procGetLedMaxSpeed, device, index, func(z *stubZone) uint32 { return z.maxSpeed }, level)
}

func (s *stubLibrary) GetLedBright(device oleaut.BSTR, index uint32, level *uint32) (Status, error) {
	return s.level(procGetLedBright, device, index, func(z *stubZone) uint32 { return z.state.Bright }, level)
}

func (s *stubLibrary) GetLedSpeed(device oleaut.BSTR, index uint32, level *uint32) (Status, error) {
	return s.level(procGetLedSpeed, device, index, func(z *stubZone) uint32 { return z.state.Speed }, level)
}

func (s *stubLibrary) GetLedStyle(device oleaut.BSTR, index uint32, style *oleaut.BSTR) (Status, error) {
	status, failing := s.enter(procGetLedStyle)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	z, status := s.zone(device, index)
	if status != StatusOK {
		return status, nil
	}
	*style = s.nativeString(z.state.Style)
	return StatusOK, nil
}

func (s *stubLibrary) GetLedColor(device oleaut.BSTR, index uint32, red, green, blue *uint32) (Status, error) {
	status, failing := s.enter(procGetLedColor)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	z, status := s.zone(device, index)
	if status != StatusOK {
		return status, nil
	}
	*red, *green, *blue = z.state.Color.Red, z.state.Color.Green, z.state.Color.Blue
	return StatusOK, nil
}

func (s *stubLibrary) SetLedStyle(device oleaut.BSTR, index uint32, style oleaut.BSTR) (Status, error) {
	status, failing := s.enter(procSetLedStyle)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	z, status := s.zone(device, index)
	if status != StatusOK {
		return status, nil
	}
	z.state.Style = oleaut.Decode(s.mem.StringData(style))
	return StatusOK, nil
}

func (s *stubLibrary) SetLedColor(device oleaut.BSTR, index uint32, red, green, blue uint32) (Status, error) {
	status, failing := s.enter(procSetLedColor)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	z, status := s.zone(device, index)
	if status != StatusOK {
		return status, nil
	}
	if z.colorless[z.state.Style] {
		return StatusNotSupported, nil
	}
	z.state.Color = Color{Red: red, Green: green, Blue: blue}
	return StatusOK, nil
}

func (s *stubLibrary) SetLedBright(device oleaut.BSTR, index uint32, level uint32) (Status, error) {
	status, failing := s.enter(procSetLedBright)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	z, status := s.zone(device, index)
	if status != StatusOK {
		return status, nil
	}
	z.state.Bright = level
	return StatusOK, nil
}

func (s *stubLibrary) SetLedSpeed(device oleaut.BSTR, index uint32, level uint32) (Status, error) {
	status, failing := s.enter(procSetLedSpeed)
	defer s.leave()
	if failing {
		return status, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	z, status := s.zone(device, index)
	if status != StatusOK {
		return status, nil
	}
	z.state.Speed = level
	return StatusOK, nil
}

func (s *stubLibrary) Automation() oleaut.Automation { return s.mem }

func (s *stubLibrary) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}
