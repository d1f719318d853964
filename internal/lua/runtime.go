// Package lua hosts the scripting VM. All Lua execution happens on the goroutine
// started by Runtime.Start; other goroutines queue work with Do or DoSyncWithResult.
package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = errors.New("lua runtime closed")

// DefaultQueueSize is the work queue capacity
const DefaultQueueSize = 100

// LuaWork is a unit of work executed on the Lua VM
type LuaWork = func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L    *lua.LState
	deps RuntimeDeps

	eventsModule *modules.EventsModule

	workQueue chan LuaWork

	// closing is closed once to signal senders and the worker to stop. sendMu is
	// held for reading around every enqueue and for writing while closing, so no
	// work is accepted after Close.
	closing   chan struct{}
	sendMu    sync.RWMutex
	closeOnce sync.Once
	worker    sync.WaitGroup
}

// NewRuntime creates a new Lua runtime with the mysticd modules preloaded
func NewRuntime(deps RuntimeDeps) *Runtime {
	r := &Runtime{
		L:         lua.NewState(),
		deps:      deps,
		workQueue: make(chan LuaWork, DefaultQueueSize),
		closing:   make(chan struct{}),
	}

	r.registerModules()

	return r
}

// registerModules preloads the modules scripts can require
func (r *Runtime) registerModules() {
	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("utils", modules.NewUtilsModule().Loader)
	r.L.PreloadModule("mystic", modules.NewMysticModule(r.deps.Controller).Loader)
	r.L.PreloadModule("action", modules.NewActionModule(r.deps.Registry, r.deps.Invoker).Loader)

	r.eventsModule = modules.NewEventsModule()
	r.L.PreloadModule("events", r.eventsModule.Loader)

	if r.deps.Profiles != nil {
		r.L.PreloadModule("profile", modules.NewProfileModule(r.deps.Profiles).Loader)
	}
	if r.deps.Store != nil {
		r.L.PreloadModule("store", modules.NewStoreModule(r.deps.Store).Loader)
	}
	if r.deps.Scheduler != nil {
		r.L.PreloadModule("sched", modules.NewSchedModule(r.deps.Scheduler).Loader)
	}
}

// Close signals the runtime to stop accepting work, waits for the worker to finish
// its current item and closes the Lua state. The work queue is never closed so late
// senders cannot panic.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.eventsModule.Close()
		r.sendMu.Lock()
		close(r.closing)
		r.sendMu.Unlock()
		r.worker.Wait()
		r.L.Close()
	})
}

// Do queues work without blocking. It returns false if the runtime is closing, the
// queue is full or ctx is done.
func (r *Runtime) Do(ctx context.Context, work LuaWork) bool {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	if r.isClosing() {
		log.Warn().Msg("Lua runtime closing, dropping work")
		return false
	}

	select {
	case <-ctx.Done():
		log.Warn().Msg("Context cancelled, dropping Lua work")
		return false
	case r.workQueue <- work:
		return true
	default:
		log.Warn().Msg("Lua work queue full, dropping work")
		return false
	}
}

// DoSyncWithResult queues work, waiting for queue space, and then waits for the
// work's result.
func (r *Runtime) DoSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrapped := func(c context.Context) {
		done <- work(c)
	}

	if err := r.enqueueWait(ctx, wrapped); err != nil {
		return err
	}

	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// enqueueWait queues work, waiting for space until ctx ends or the runtime closes.
func (r *Runtime) enqueueWait(ctx context.Context, work LuaWork) error {
	for {
		r.sendMu.RLock()
		if r.isClosing() {
			r.sendMu.RUnlock()
			return ErrRuntimeClosed
		}
		select {
		case r.workQueue <- work:
			r.sendMu.RUnlock()
			return nil
		default:
		}
		r.sendMu.RUnlock()

		select {
		case <-r.closing:
			return ErrRuntimeClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (r *Runtime) isClosing() bool {
	select {
	case <-r.closing:
		return true
	default:
		return false
	}
}

// Start runs the Lua worker in a new goroutine. The worker is the only goroutine
// that touches the VM once started, and exits when ctx ends or the runtime closes.
func (r *Runtime) Start(ctx context.Context) {
	r.worker.Add(1)
	go func() {
		defer r.worker.Done()
		r.loop(ctx)
	}()
}

func (r *Runtime) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			select {
			case <-r.closing:
			default:
				r.drainQueue(ctx)
			}
			return
		case <-r.closing:
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

// drainQueue runs work queued before shutdown. Lua code observing the cancelled
// context stops at its next instruction.
func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript executes a script file. It must be called before Start.
func (r *Runtime) LoadScript(path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().
		Strs("actions", r.deps.Registry.Names()).
		Msg("Lua script loaded successfully")
	return nil
}

// LoadString executes script source. It must be called before Start.
func (r *Runtime) LoadString(source string) error {
	if err := r.L.DoString(source); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}
	return nil
}

// RegisterEventHandlers subscribes the handlers the script declared with events.on.
func (r *Runtime) RegisterEventHandlers(ctx context.Context, bus modules.Subscriber) {
	r.eventsModule.RegisterHandlers(ctx, r.L, bus, r)
}

// InvokeAction runs a registered action on the Lua worker and waits for it. The
// origin attached to ctx is carried over to the worker.
func (r *Runtime) InvokeAction(ctx context.Context, name string, args map[string]any) error {
	origin := control.OriginFrom(ctx)
	return r.DoSyncWithResult(ctx, func(workCtx context.Context) error {
		return r.deps.Invoker.Invoke(control.WithOrigin(workCtx, origin.Source, origin.CorrelationID), name, args)
	})
}
