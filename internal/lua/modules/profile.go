package modules

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/mystic"
	"github.com/dokzlo13/mysticd/internal/profile"
)

// ProfileModule exposes saved zone profiles to Lua
type ProfileModule struct {
	profiles *profile.Manager
}

// NewProfileModule creates a new profile module
func NewProfileModule(profiles *profile.Manager) *ProfileModule {
	return &ProfileModule{profiles: profiles}
}

// Loader is the module loader for Lua
func (m *ProfileModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetFuncs(mod, map[string]lua.LGFunction{
		"capture": m.capture,
		"apply":   m.apply,
		"list":    m.list,
		"delete":  m.delete,
	})

	L.Push(mod)
	return 1
}

// capture(name, [device names]) -> number of zones captured
func (m *ProfileModule) capture(L *lua.LState) int {
	name := L.CheckString(1)

	var f mystic.Filter
	if names := L.OptTable(2, nil); names != nil {
		f = mystic.Names(LuaTableToStrings(names)...)
	}

	p, err := m.profiles.Capture(name, f)
	if err != nil {
		return pushError(L, err)
	}
	L.Push(lua.LNumber(len(p.Zones)))
	return 1
}

// apply(name) -> {applied={...}, failed={zone=message}}
func (m *ProfileModule) apply(L *lua.LState) int {
	res, err := m.profiles.Apply(luaContext(L), L.CheckString(1))
	if err != nil {
		return pushError(L, err)
	}

	tbl := L.NewTable()
	tbl.RawSetString("applied", StringsToLuaTable(L, res.Applied))
	tbl.RawSetString("failed", GoToLuaValue(L, res.Failed))
	L.Push(tbl)
	return 1
}

// list() -> names
func (m *ProfileModule) list(L *lua.LState) int {
	names, err := m.profiles.Names()
	if err != nil {
		return pushError(L, err)
	}
	L.Push(StringsToLuaTable(L, names))
	return 1
}

// delete(name) -> true
func (m *ProfileModule) delete(L *lua.LState) int {
	if err := m.profiles.Delete(L.CheckString(1)); err != nil {
		return pushError(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}
