package modules

import (
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/actions"
	"github.com/dokzlo13/mysticd/internal/control"
)

// ActionModule provides action.define() and action.run() to Lua
type ActionModule struct {
	registry *actions.Registry
	invoker  *actions.Invoker
}

// NewActionModule creates a new action module
func NewActionModule(registry *actions.Registry, invoker *actions.Invoker) *ActionModule {
	return &ActionModule{
		registry: registry,
		invoker:  invoker,
	}
}

// Loader is the module loader for Lua
func (m *ActionModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "define", L.NewFunction(m.define))
	L.SetField(mod, "run", L.NewFunction(m.run))
	L.SetField(mod, "list", L.NewFunction(m.list))

	L.Push(mod)
	return 1
}

// define(name, function(ctx, args), [description]) registers an action
func (m *ActionModule) define(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	description := L.OptString(3, "")

	if err := m.registry.Register(&luaAction{L: L, name: name, fn: fn}, description); err != nil {
		L.RaiseError("failed to register action: %s", err.Error())
		return 0
	}

	log.Debug().Str("action", name).Msg("Lua action defined")
	return 0
}

// run(name, args) -> true | nil, message
func (m *ActionModule) run(L *lua.LState) int {
	name := L.CheckString(1)
	args := LuaTableToMap(L.OptTable(2, L.NewTable()))

	if err := m.invoker.Invoke(luaContext(L), name, args); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// list() -> sorted action names
func (m *ActionModule) list(L *lua.LState) int {
	L.Push(StringsToLuaTable(L, m.registry.Names()))
	return 1
}

// luaAction wraps a Lua function as an action.
//
// It keeps the LState it was defined on. Execute must only be called on the Lua
// worker goroutine.
type luaAction struct {
	L    *lua.LState
	name string
	fn   *lua.LFunction
}

func (a *luaAction) Name() string { return a.name }

func (a *luaAction) Execute(ctx *actions.Context, args map[string]any) error {
	prev := a.L.Context()
	a.L.SetContext(ctx.Ctx())
	defer func() {
		if prev != nil {
			a.L.SetContext(prev)
		} else {
			a.L.RemoveContext()
		}
	}()

	a.L.Push(a.fn)
	a.L.Push(a.contextTable(ctx))
	a.L.Push(MapToLuaTable(a.L, args))

	return a.L.PCall(2, 0, nil)
}

// contextTable builds the ctx argument: {source=, correlation_id=, run=function(name, args)}
func (a *luaAction) contextTable(ctx *actions.Context) *lua.LTable {
	origin := control.OriginFrom(ctx.Ctx())

	tbl := a.L.NewTable()
	tbl.RawSetString("source", lua.LString(origin.Source))
	tbl.RawSetString("correlation_id", lua.LString(origin.CorrelationID))
	tbl.RawSetString("run", a.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		args := LuaTableToMap(L.OptTable(2, L.NewTable()))
		if err := ctx.RunAction(name, args); err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}))
	return tbl
}
