package mystic

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDoReturnsOpError(t *testing.T) {
	h := newHandle(newStub())
	sentinel := errors.New("op failed")

	err := h.Do(func(Library, *Marshaller) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, h.Poisoned())
}

func TestWithLocked(t *testing.T) {
	h := newHandle(newStub())

	n, err := withLocked(h, func(Library, *Marshaller) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestHandleSerializesCalls(t *testing.T) {
	stub := newStub()
	h := newHandle(stub)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Do(func(lib Library, _ *Marshaller) error {
				_, err := lib.Initialize()
				return err
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, stub.callCount(procInitialize))
	assert.Zero(t, stub.overlaps.Load())
}

func TestHandlePoisonedAfterPanic(t *testing.T) {
	stub := newStub()
	stub.panicOn = procInitialize
	h := newHandle(stub)

	assert.Panics(t, func() {
		_ = h.Do(func(lib Library, _ *Marshaller) error {
			_, err := lib.Initialize()
			return err
		})
	})
	assert.True(t, h.Poisoned())

	called := false
	err := h.Do(func(Library, *Marshaller) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrPoisoned)
	assert.False(t, called)
}

func TestHandleClose(t *testing.T) {
	stub := newStub()
	h := newHandle(stub)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.True(t, stub.released)

	err := h.Do(func(Library, *Marshaller) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
