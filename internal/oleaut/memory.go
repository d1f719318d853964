package oleaut

import (
	"fmt"
	"sync"
)

// Memory is an in-process Automation backend. Handles are table keys, not pointers,
// so nothing here touches unsafe memory. It tracks live strings so tests can detect
// leaks and double frees.
type Memory struct {
	mu      sync.Mutex
	next    uintptr
	strings map[BSTR][]uint16
	arrays  map[SafeArray][]BSTR
	freed   map[BSTR]struct{}
}

// NewMemory creates an empty handle table.
func NewMemory() *Memory {
	return &Memory{
		next:    0x1000,
		strings: make(map[BSTR][]uint16),
		arrays:  make(map[SafeArray][]BSTR),
		freed:   make(map[BSTR]struct{}),
	}
}

func (m *Memory) nextHandle() uintptr {
	m.next += 8
	return m.next
}

// AllocString implements Automation.
func (m *Memory) AllocString(s []uint16) (BSTR, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.allocLocked(s), nil
}

func (m *Memory) allocLocked(s []uint16) BSTR {
	data := make([]uint16, len(s))
	copy(data, s)
	b := BSTR(m.nextHandle())
	m.strings[b] = data
	return b
}

// FreeString implements Automation. Freeing a handle twice panics, matching the
// heap corruption the real allocator would suffer.
func (m *Memory) FreeString(b BSTR) {
	if b == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.freed[b]; ok {
		panic(fmt.Sprintf("oleaut: double free of BSTR %#x", uintptr(b)))
	}
	if _, ok := m.strings[b]; !ok {
		panic(fmt.Sprintf("oleaut: free of unknown BSTR %#x", uintptr(b)))
	}
	delete(m.strings, b)
	m.freed[b] = struct{}{}
}

// StringData implements Automation.
func (m *Memory) StringData(b BSTR) []uint16 {
	if b == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.strings[b]
	if !ok {
		return nil
	}
	out := make([]uint16, len(data))
	copy(out, data)
	return out
}

// ArrayBounds implements Automation. Arrays created by NewArray are zero-based.
func (m *Memory) ArrayBounds(a SafeArray) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elems, ok := m.arrays[a]
	if !ok {
		return 0, 0, ErrInvalidHandle
	}
	return 0, int32(len(elems)) - 1, nil
}

// ArrayString implements Automation.
func (m *Memory) ArrayString(a SafeArray, index int32) (BSTR, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elems, ok := m.arrays[a]
	if !ok {
		return 0, ErrInvalidHandle
	}
	if index < 0 || int(index) >= len(elems) {
		return 0, ErrBadIndex
	}
	return m.allocLocked(m.strings[elems[index]]), nil
}

// NewString allocates a string owned by the caller of the table, the way a native
// library hands out strings it keeps ownership of.
func (m *Memory) NewString(s string) BSTR {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.allocLocked(Encode(s))
}

// NewArray allocates a zero-based array of freshly allocated strings.
func (m *Memory) NewArray(values []string) SafeArray {
	m.mu.Lock()
	defer m.mu.Unlock()

	elems := make([]BSTR, len(values))
	for i, v := range values {
		elems[i] = m.allocLocked(Encode(v))
	}
	a := SafeArray(m.nextHandle())
	m.arrays[a] = elems
	return a
}

// DestroyArray implements Automation. Destroying an unknown or already destroyed
// array returns ErrInvalidHandle.
func (m *Memory) DestroyArray(a SafeArray) error {
	if a == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	elems, ok := m.arrays[a]
	if !ok {
		return ErrInvalidHandle
	}
	for _, b := range elems {
		delete(m.strings, b)
	}
	delete(m.arrays, a)
	return nil
}

// LiveArrays reports how many arrays are currently allocated.
func (m *Memory) LiveArrays() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.arrays)
}

// LiveStrings reports how many strings are currently allocated, including the
// elements of live arrays.
func (m *Memory) LiveStrings() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.strings)
}
