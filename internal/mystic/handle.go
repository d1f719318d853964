package mystic

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Handle owns the opened native library and the single lock guarding every call
// into it. All devices and zones of one SDK share the same Handle.
type Handle struct {
	mu       sync.Mutex
	lib      Library
	marshal  *Marshaller
	poisoned bool
	closed   bool
}

func newHandle(lib Library) *Handle {
	return &Handle{
		lib:     lib,
		marshal: NewMarshaller(lib.Automation()),
	}
}

// Do runs op while holding the lock. Entry points must be resolved and invoked inside
// op; nothing obtained from the library may be used after op returns except copies.
//
// If op panics, the handle is marked poisoned before the lock is released and the
// panic continues. Every later Do returns ErrPoisoned.
func (h *Handle) Do(op func(lib Library, m *Marshaller) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.poisoned {
		return ErrPoisoned
	}
	if h.closed {
		return ErrClosed
	}

	completed := false
	defer func() {
		if !completed {
			h.poisoned = true
			log.Error().Msg("Native call panicked, SDK handle poisoned")
		}
	}()

	err := op(h.lib, h.marshal)
	completed = true
	return err
}

// withLocked is Do for operations that produce a value.
func withLocked[T any](h *Handle, op func(lib Library, m *Marshaller) (T, error)) (T, error) {
	var result T
	err := h.Do(func(lib Library, m *Marshaller) error {
		var err error
		result, err = op(lib, m)
		return err
	})
	return result, err
}

// Poisoned reports whether a previous call panicked while holding the lock.
func (h *Handle) Poisoned() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.poisoned
}

// Close releases the native library. It waits for the call in flight, if any.
// Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.lib.Release()
}
