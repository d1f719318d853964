package modules

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/mystic"
)

// MysticModule exposes the zone controller to Lua.
//
// Failing calls return nil, message, kind where kind is a control.ErrorKind, so
// scripts can write `local s, err, kind = mystic.set_color(...)`.
type MysticModule struct {
	ctrl *control.Controller
}

// NewMysticModule creates a new mystic module
func NewMysticModule(ctrl *control.Controller) *MysticModule {
	return &MysticModule{ctrl: ctrl}
}

// Loader is the module loader for Lua
func (m *MysticModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetFuncs(mod, map[string]lua.LGFunction{
		"devices":     m.devices,
		"zones":       m.zones,
		"get_state":   m.getState,
		"set_style":   m.setStyle,
		"set_color":   m.setColor,
		"set_bright":  m.setBright,
		"set_speed":   m.setSpeed,
		"set_state":   m.setState,
		"merge_state": m.mergeState,
		"reload":      m.reload,
	})

	L.Push(mod)
	return 1
}

// luaContext returns the work context with a "lua" origin unless the caller
// (an action invoked over HTTP, say) already set one.
func luaContext(L *lua.LState) context.Context {
	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return control.EnsureOrigin(ctx, "lua")
}

func pushError(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	L.Push(lua.LString(control.KindOf(err)))
	return 3
}

func (m *MysticModule) pushResult(L *lua.LState, s mystic.ZoneState, err error) int {
	if err != nil {
		return pushError(L, err)
	}
	L.Push(ZoneStateToLuaTable(L, s))
	return 1
}

// devices([names]) -> array of {name=, zones={...}}
func (m *MysticModule) devices(L *lua.LState) int {
	var f mystic.Filter
	if names := L.OptTable(1, nil); names != nil {
		f = mystic.Names(LuaTableToStrings(names)...)
	}

	out := L.NewTable()
	for _, d := range m.ctrl.Devices(f) {
		zones := d.ZonesFiltered(nil)
		names := make([]string, len(zones))
		for i, z := range zones {
			names[i] = z.Name()
		}

		tbl := L.NewTable()
		tbl.RawSetString("name", lua.LString(d.Name()))
		tbl.RawSetString("zones", StringsToLuaTable(L, names))
		out.Append(tbl)
	}

	L.Push(out)
	return 1
}

// zones(device) -> array of {name=, styles=, max_bright=, max_speed=}
func (m *MysticModule) zones(L *lua.LState) int {
	d, err := m.ctrl.Device(L.CheckString(1))
	if err != nil {
		return pushError(L, err)
	}

	out := L.NewTable()
	for _, z := range d.ZonesFiltered(nil) {
		tbl := L.NewTable()
		tbl.RawSetString("name", lua.LString(z.Name()))
		tbl.RawSetString("styles", StringsToLuaTable(L, z.SupportedStyles()))
		tbl.RawSetString("max_bright", lua.LNumber(z.MaxBright()))
		tbl.RawSetString("max_speed", lua.LNumber(z.MaxSpeed()))
		out.Append(tbl)
	}

	L.Push(out)
	return 1
}

// get_state(device, zone) -> state
func (m *MysticModule) getState(L *lua.LState) int {
	s, err := m.ctrl.State(L.CheckString(1), L.CheckString(2))
	return m.pushResult(L, s, err)
}

// set_style(device, zone, style) -> state
func (m *MysticModule) setStyle(L *lua.LState) int {
	s, err := m.ctrl.SetStyle(luaContext(L), L.CheckString(1), L.CheckString(2), L.CheckString(3))
	return m.pushResult(L, s, err)
}

// set_color(device, zone, {r=, g=, b=} | "#rrggbb") -> state
func (m *MysticModule) setColor(L *lua.LState) int {
	device, zone := L.CheckString(1), L.CheckString(2)
	c, err := LuaToColor(L.CheckAny(3))
	if err != nil {
		L.ArgError(3, err.Error())
		return 0
	}
	s, err := m.ctrl.SetColor(luaContext(L), device, zone, c)
	return m.pushResult(L, s, err)
}

// set_bright(device, zone, level) -> state
func (m *MysticModule) setBright(L *lua.LState) int {
	device, zone := L.CheckString(1), L.CheckString(2)
	level := m.checkLevel(L, 3)
	s, err := m.ctrl.SetBright(luaContext(L), device, zone, level)
	return m.pushResult(L, s, err)
}

// set_speed(device, zone, level) -> state
func (m *MysticModule) setSpeed(L *lua.LState) int {
	device, zone := L.CheckString(1), L.CheckString(2)
	level := m.checkLevel(L, 3)
	s, err := m.ctrl.SetSpeed(luaContext(L), device, zone, level)
	return m.pushResult(L, s, err)
}

// set_state(device, zone, {style=, color=, bright=, speed=}) -> state
func (m *MysticModule) setState(L *lua.LState) int {
	device, zone := L.CheckString(1), L.CheckString(2)
	want, err := LuaToZoneState(L.CheckTable(3))
	if err != nil {
		L.ArgError(3, err.Error())
		return 0
	}
	s, err := m.ctrl.SetState(luaContext(L), device, zone, want)
	return m.pushResult(L, s, err)
}

// merge_state(device, zone, partial state) -> state
func (m *MysticModule) mergeState(L *lua.LState) int {
	device, zone := L.CheckString(1), L.CheckString(2)
	patch, err := LuaToZoneStatePatch(L.CheckTable(3))
	if err != nil {
		L.ArgError(3, err.Error())
		return 0
	}
	s, err := m.ctrl.MergeState(luaContext(L), device, zone, patch)
	return m.pushResult(L, s, err)
}

// reload() -> true
func (m *MysticModule) reload(L *lua.LState) int {
	if err := m.ctrl.Reload(luaContext(L)); err != nil {
		return pushError(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (m *MysticModule) checkLevel(L *lua.LState, n int) uint32 {
	level, err := luaLevel(L.CheckAny(n), "level")
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return level
}
