package modules

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/eventbus"
	"github.com/dokzlo13/mysticd/internal/middleware"
)

// Executor queues work on the Lua worker.
type Executor interface {
	Do(ctx context.Context, work func(ctx context.Context)) bool
}

// Subscriber registers bus handlers.
type Subscriber interface {
	Subscribe(eventType eventbus.EventType, handler eventbus.Handler)
}

type eventHandler struct {
	fn   *lua.LFunction
	opts middleware.Options
}

// EventsModule provides events.on(type, fn, [opts]). Handlers are collected while the
// script loads and subscribed by RegisterHandlers afterwards.
type EventsModule struct {
	handlers map[eventbus.EventType][]eventHandler

	mu         sync.Mutex
	collectors []middleware.Collector
}

// NewEventsModule creates a new events module
func NewEventsModule() *EventsModule {
	return &EventsModule{handlers: make(map[eventbus.EventType][]eventHandler)}
}

// Loader is the module loader for Lua
func (m *EventsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "on", L.NewFunction(m.on))
	L.SetField(mod, "ZONE_CHANGED", lua.LString(eventbus.EventTypeZoneChanged))
	L.SetField(mod, "SESSION_RELOADED", lua.LString(eventbus.EventTypeSessionReloaded))
	L.SetField(mod, "PROFILE_APPLIED", lua.LString(eventbus.EventTypeProfileApplied))
	L.SetField(mod, "MQTT_COMMAND", lua.LString(eventbus.EventTypeMQTTCommand))

	L.Push(mod)
	return 1
}

// on(type, function(event)) registers a handler.
// on(type, function(events), {quiet_ms=, interval_ms=, count=}) registers a batching
// handler that receives an array of events.
func (m *EventsModule) on(L *lua.LState) int {
	eventType := eventbus.EventType(L.CheckString(1))
	fn := L.CheckFunction(2)

	if !eventType.Valid() {
		L.ArgError(1, "unknown event type "+string(eventType))
		return 0
	}

	var opts middleware.Options
	if tbl := L.OptTable(3, nil); tbl != nil {
		opts.QuietMs = optInt(tbl, "quiet_ms")
		opts.IntervalMs = optInt(tbl, "interval_ms")
		opts.Count = optInt(tbl, "count")
		if opts.IsZero() {
			L.ArgError(3, "expected a positive quiet_ms, interval_ms or count")
			return 0
		}
	}

	m.handlers[eventType] = append(m.handlers[eventType], eventHandler{fn: fn, opts: opts})
	return 0
}

func optInt(tbl *lua.LTable, key string) int {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return 0
}

// Types returns the event types that have handlers, in order.
func (m *EventsModule) Types() []eventbus.EventType {
	types := make([]eventbus.EventType, 0, len(m.handlers))
	for t := range m.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// RegisterHandlers subscribes every collected handler on bus. Events are delivered
// on the Lua worker through exec. A failing handler is logged and does not stop the
// others.
func (m *EventsModule) RegisterHandlers(ctx context.Context, L *lua.LState, bus Subscriber, exec Executor) {
	for _, eventType := range m.Types() {
		for _, h := range m.handlers[eventType] {
			c := m.collector(ctx, L, h, exec)
			bus.Subscribe(eventType, c.AddEvent)
		}

		log.Debug().Str("event_type", string(eventType)).Int("handlers", len(m.handlers[eventType])).Msg("Lua event handlers registered")
	}
}

func (m *EventsModule) collector(ctx context.Context, L *lua.LState, h eventHandler, exec Executor) middleware.Collector {
	batched := !h.opts.IsZero()

	c := middleware.New(h.opts, func(events []eventbus.Event) {
		exec.Do(ctx, func(workCtx context.Context) {
			var arg lua.LValue
			if batched {
				arr := L.NewTable()
				for _, e := range events {
					arr.Append(eventTable(L, e))
				}
				arg = arr
			} else {
				arg = eventTable(L, events[0])
			}

			L.Push(h.fn)
			L.Push(arg)
			if err := L.PCall(1, 0, nil); err != nil {
				log.Error().Err(err).Str("event_type", string(events[0].Type)).Msg("Lua event handler failed")
			}
		})
	})

	m.mu.Lock()
	m.collectors = append(m.collectors, c)
	m.mu.Unlock()
	return c
}

func eventTable(L *lua.LState, e eventbus.Event) *lua.LTable {
	tbl := MapToLuaTable(L, e.Data)
	tbl.RawSetString("type", lua.LString(e.Type))
	return tbl
}

// Close stops every collector. Pending batches are dropped.
func (m *EventsModule) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.collectors {
		c.Close()
	}
	m.collectors = nil
}
