package lua

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/actions"
	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/db"
	"github.com/dokzlo13/mysticd/internal/eventbus"
	"github.com/dokzlo13/mysticd/internal/ledger"
	"github.com/dokzlo13/mysticd/internal/mystic"
	"github.com/dokzlo13/mysticd/internal/profile"
	"github.com/dokzlo13/mysticd/internal/scheduler"
	"github.com/dokzlo13/mysticd/internal/simulator"
	"github.com/dokzlo13/mysticd/internal/state"
)

type testEnv struct {
	rt     *Runtime
	ctrl   *control.Controller
	ledger *ledger.Ledger
	store  *state.Store
	bus    *eventbus.Bus
	sched  *scheduler.Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sdk, err := simulator.Open(simulator.DefaultFixture())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sdk.Close() })

	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	bus := eventbus.New()
	t.Cleanup(func() { bus.Close(context.Background()) })

	env := &testEnv{
		ledger: ledger.New(database.DB),
		store:  state.NewStore(database.DB),
		bus:    bus,
	}
	env.sched = scheduler.New(nil, env.ledger, "UTC")
	env.ctrl = control.New(sdk, control.WithLedger(env.ledger), control.WithPublisher(bus))

	registry := actions.NewRegistry()
	env.rt = NewRuntime(RuntimeDeps{
		Controller: env.ctrl,
		Registry:   registry,
		Invoker:    actions.NewInvoker(registry, env.ctrl, env.ledger),
		Profiles:   profile.NewManager(env.ctrl, env.store, env.ledger, bus),
		Store:      env.store,
		Scheduler:  env.sched,
	})
	env.sched.SetRunner(env.rt)
	t.Cleanup(env.rt.Close)
	return env
}

// start runs the worker until the test ends.
func (e *testEnv) start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.rt.Start(ctx)
}

func TestMysticModuleWrites(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.rt.LoadString(`
		local mystic = require("mystic")
		local s = assert(mystic.set_style("MSI_MB", "JRGB1", "Breathing"))
		style = s.style
		s = assert(mystic.set_color("MSI_MB", "JRGB1", "#00ff00"))
		green = s.color.g
		s = assert(mystic.merge_state("MSI_MB", "JRGB1", {bright = 40, speed = 2}))
		bright, speed = s.bright, s.speed
	`))

	assert.Equal(t, lua.LString("Breathing"), env.rt.L.GetGlobal("style"))
	assert.Equal(t, lua.LNumber(255), env.rt.L.GetGlobal("green"))
	assert.Equal(t, lua.LNumber(40), env.rt.L.GetGlobal("bright"))
	assert.Equal(t, lua.LNumber(2), env.rt.L.GetGlobal("speed"))

	got, err := env.ctrl.State("MSI_MB", "JRGB1")
	require.NoError(t, err)
	assert.Equal(t, mystic.ZoneState{Style: "Breathing", Color: mystic.Color{Green: 255}, Bright: 40, Speed: 2}, got)

	entries, err := env.ledger.Find(ledger.Query{EventType: ledger.EventZoneWriteOK})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "lua", e.Source)
	}
}

func TestMysticModuleErrors(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.rt.LoadString(`
		local mystic = require("mystic")
		_, bright_err, bright_kind = mystic.set_bright("MSI_KEYBOARD", "KEYS", 11)
		_, zone_err, zone_kind = mystic.get_state("MSI_MB", "NOPE")
		mystic.set_style("MSI_MB", "JRGB1", "NoAnimation")
		_, _, color_kind = mystic.set_color("MSI_MB", "JRGB1", {r = 1, g = 2, b = 3})
	`))

	assert.Contains(t, env.rt.L.GetGlobal("bright_err").String(), "bright")
	assert.Equal(t, lua.LString(control.KindUsage), env.rt.L.GetGlobal("bright_kind"))
	assert.Contains(t, env.rt.L.GetGlobal("zone_err").String(), "unknown zone")
	assert.Equal(t, lua.LString(control.KindNotFound), env.rt.L.GetGlobal("zone_kind"))
	assert.Equal(t, lua.LString(control.KindNotSupported), env.rt.L.GetGlobal("color_kind"))

	err := env.rt.LoadString(`require("mystic").set_state("MSI_MB", "JRGB1", {style = "Static"})`)
	assert.ErrorContains(t, err, "state needs")
}

func TestMysticModuleListing(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.rt.LoadString(`
		local mystic = require("mystic")
		local devices = mystic.devices()
		first_device = devices[1].name
		device_count = #devices
		mb_zones = #devices[2].zones
		only_kb = #mystic.devices({"MSI_KEYBOARD"})
		local zones = mystic.zones("MSI_KEYBOARD")
		keys_max_bright = zones[1].max_bright
		keys_styles = table.concat(zones[1].styles, ",")
	`))

	assert.Equal(t, lua.LString("MSI_KEYBOARD"), env.rt.L.GetGlobal("first_device"))
	assert.Equal(t, lua.LNumber(2), env.rt.L.GetGlobal("device_count"))
	assert.Equal(t, lua.LNumber(2), env.rt.L.GetGlobal("mb_zones"))
	assert.Equal(t, lua.LNumber(1), env.rt.L.GetGlobal("only_kb"))
	assert.Equal(t, lua.LNumber(10), env.rt.L.GetGlobal("keys_max_bright"))
	assert.Equal(t, lua.LString("NoAnimation,Static,Wave"), env.rt.L.GetGlobal("keys_styles"))
}

func TestActionInvokedThroughWorker(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.rt.LoadString(`
		local action = require("action")
		local mystic = require("mystic")

		action.define("dim", function(ctx, args)
			assert(mystic.set_bright("MSI_MB", "JRGB1", args.level))
		end)
		action.define("dim_twice", function(ctx, args)
			assert(ctx.run("dim", {level = args.level}))
		end)
		action.define("fail", function(ctx, args)
			error("nope")
		end)
	`))
	env.start(t)

	ctx := control.WithOrigin(context.Background(), "api", "act-1")
	require.NoError(t, env.rt.InvokeAction(ctx, "dim_twice", map[string]any{"level": 10}))

	got, err := env.ctrl.State("MSI_MB", "JRGB1")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), got.Bright)

	entries, err := env.ledger.ByCorrelation("act-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ledger.EventZoneWriteOK, entries[0].EventType)
	assert.Equal(t, "api", entries[0].Source)
	assert.Equal(t, "dim", entries[1].Payload["action"])
	assert.Equal(t, "dim_twice", entries[2].Payload["action"])

	err = env.rt.InvokeAction(ctx, "fail", nil)
	assert.ErrorContains(t, err, "nope")
	assert.ErrorIs(t, env.rt.InvokeAction(ctx, "missing", nil), actions.ErrNotFound)
}

func TestEventHandlers(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.rt.LoadString(`
		local events = require("events")
		local store = require("store")

		events.on(events.ZONE_CHANGED, function(e)
			store.set("last", e.device .. "/" .. e.zone .. ":" .. e.state.style)
		end)
	`))
	err := env.rt.LoadString(`require("events").on("bogus", function() end)`)
	assert.ErrorContains(t, err, "unknown event type")

	env.start(t)
	env.rt.RegisterEventHandlers(context.Background(), env.bus)

	_, err = env.ctrl.SetStyle(context.Background(), "MSI_KEYBOARD", "KEYS", "Static")
	require.NoError(t, err)

	saved := state.NewTypedStore[any](env.store, state.KindScript)
	assert.Eventually(t, func() bool {
		v, ok, err := saved.Get("last")
		return err == nil && ok && v == "MSI_KEYBOARD/KEYS:Static"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBatchedEventHandler(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.rt.LoadString(`
		local events = require("events")
		local store = require("store")

		events.on(events.ZONE_CHANGED, function(batch)
			store.set("batch", #batch)
		end, {count = 2})
	`))
	err := env.rt.LoadString(`require("events").on("zone_changed", function() end, {count = 0})`)
	assert.ErrorContains(t, err, "quiet_ms")

	env.start(t)
	env.rt.RegisterEventHandlers(context.Background(), env.bus)

	ctx := context.Background()
	_, err = env.ctrl.SetStyle(ctx, "MSI_KEYBOARD", "KEYS", "Static")
	require.NoError(t, err)
	_, err = env.ctrl.SetBright(ctx, "MSI_KEYBOARD", "KEYS", 5)
	require.NoError(t, err)

	saved := state.NewTypedStore[any](env.store, state.KindScript)
	assert.Eventually(t, func() bool {
		v, ok, err := saved.Get("batch")
		return err == nil && ok && v == float64(2)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProfileAndStoreModules(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.rt.LoadString(`
		local profile = require("profile")
		local mystic = require("mystic")
		local store = require("store")

		captured = profile.capture("before", {"MSI_KEYBOARD"})
		mystic.set_bright("MSI_KEYBOARD", "KEYS", 0)
		local res = assert(profile.apply("before"))
		applied = res.applied[1]
		_, missing_err = profile.apply("missing")
		names = table.concat(profile.list(), ",")

		store.set("counter", 3)
		counter = store.get("counter")
		fallback = store.get("absent", "dflt")
		store.set("counter", nil)
		gone = store.get("counter") == nil

		store.incr("hits")
		hits = store.incr("hits", 4)
		store.set("name", "x")
		_, incr_err = pcall(store.incr, "name")
	`))

	assert.Equal(t, lua.LNumber(1), env.rt.L.GetGlobal("captured"))
	assert.Equal(t, lua.LString("MSI_KEYBOARD/KEYS"), env.rt.L.GetGlobal("applied"))
	assert.Contains(t, env.rt.L.GetGlobal("missing_err").String(), "profile not found")
	assert.Equal(t, lua.LString("before"), env.rt.L.GetGlobal("names"))
	assert.Equal(t, lua.LNumber(3), env.rt.L.GetGlobal("counter"))
	assert.Equal(t, lua.LString("dflt"), env.rt.L.GetGlobal("fallback"))
	assert.Equal(t, lua.LTrue, env.rt.L.GetGlobal("gone"))
	assert.Equal(t, lua.LNumber(5), env.rt.L.GetGlobal("hits"))
	assert.Contains(t, env.rt.L.GetGlobal("incr_err").String(), "not a number")

	got, err := env.ctrl.State("MSI_KEYBOARD", "KEYS")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), got.Bright)
}

func TestSchedModule(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.rt.LoadString(`
		local action = require("action")
		local mystic = require("mystic")
		local sched = require("sched")

		action.define("pulse", function(ctx, args)
			assert(mystic.set_speed("MSI_KEYBOARD", "KEYS", args.speed))
		end)

		sched.daily("night", "23:30", "pulse", {speed = 1}, {tag = "mood", misfire = "run_latest"})
		sched.every("tick", 0.02, "pulse", {speed = 3})
		listed = #sched.list()
		cancelled = sched.cancel("night")
		ok_bad, bad_err = pcall(sched.daily, "bad", "25:00", "pulse")
		ok_policy = pcall(sched.daily, "bad", "10:00", "pulse", {}, {misfire = "sometimes"})
	`))

	assert.Equal(t, lua.LNumber(2), env.rt.L.GetGlobal("listed"))
	assert.Equal(t, lua.LTrue, env.rt.L.GetGlobal("cancelled"))
	assert.Equal(t, lua.LFalse, env.rt.L.GetGlobal("ok_bad"))
	assert.Contains(t, env.rt.L.GetGlobal("bad_err").String(), "failed to define schedule")
	assert.Equal(t, lua.LFalse, env.rt.L.GetGlobal("ok_policy"))

	env.start(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = env.sched.Run(ctx) }()

	assert.Eventually(t, func() bool {
		entries, err := env.ledger.Find(ledger.Query{EventType: ledger.EventActionCompleted})
		return err == nil && len(entries) > 0 && entries[0].Source == scheduler.Source
	}, 2*time.Second, 10*time.Millisecond)

	got, err := env.ctrl.State("MSI_KEYBOARD", "KEYS")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.Speed)
}

func TestDoRejectsWorkAfterClose(t *testing.T) {
	for i := 0; i < 100; i++ {
		rt := NewRuntime(RuntimeDeps{Registry: actions.NewRegistry()})
		rt.Close()

		require.False(t, rt.Do(context.Background(), func(context.Context) {}), "run %d", i)
		require.ErrorIs(t, rt.DoSyncWithResult(context.Background(), func(context.Context) error { return nil }), ErrRuntimeClosed)
	}
}

func TestRuntimeClosed(t *testing.T) {
	env := newTestEnv(t)
	env.rt.Close()

	assert.False(t, env.rt.Do(context.Background(), func(context.Context) {}))
	assert.ErrorIs(t, env.rt.InvokeAction(context.Background(), "x", nil), ErrRuntimeClosed)
}
