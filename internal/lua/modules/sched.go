package modules

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/scheduler"
)

// SchedModule provides sched.daily() and sched.every() to Lua.
//
// Setup calls with bad arguments raise errors; schedules are usually declared
// once when the script loads.
type SchedModule struct {
	scheduler *scheduler.Scheduler
}

// NewSchedModule creates a new sched module
func NewSchedModule(sched *scheduler.Scheduler) *SchedModule {
	return &SchedModule{scheduler: sched}
}

// Loader is the module loader for Lua
func (m *SchedModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetFuncs(mod, map[string]lua.LGFunction{
		"daily":  m.daily,
		"every":  m.every,
		"cancel": m.cancel,
		"list":   m.list,
	})

	L.Push(mod)
	return 1
}

// daily(id, "HH:MM", action_name, [args], [{tag=, misfire="skip"|"run_latest"}])
func (m *SchedModule) daily(L *lua.LState) int {
	id := L.CheckString(1)
	clock := L.CheckString(2)
	actionName := L.CheckString(3)
	args := LuaTableToMap(L.OptTable(4, L.NewTable()))
	opts := L.OptTable(5, L.NewTable())

	tag := optString(opts, "tag")
	misfire, err := scheduler.ParseMisfirePolicy(optString(opts, "misfire"))
	if err != nil {
		L.ArgError(5, err.Error())
		return 0
	}

	if err := m.scheduler.Daily(id, clock, actionName, args, tag, misfire); err != nil {
		L.RaiseError("failed to define schedule: %s", err.Error())
	}
	return 0
}

// every(id, seconds, action_name, [args], [{tag=}])
func (m *SchedModule) every(L *lua.LState) int {
	id := L.CheckString(1)
	seconds := float64(L.CheckNumber(2))
	actionName := L.CheckString(3)
	args := LuaTableToMap(L.OptTable(4, L.NewTable()))
	opts := L.OptTable(5, L.NewTable())

	interval := time.Duration(seconds * float64(time.Second))
	if err := m.scheduler.Every(id, interval, actionName, args, optString(opts, "tag")); err != nil {
		L.RaiseError("failed to define schedule: %s", err.Error())
	}
	return 0
}

// cancel(id) -> true if the schedule existed
func (m *SchedModule) cancel(L *lua.LState) int {
	L.Push(lua.LBool(m.scheduler.Unregister(L.CheckString(1))))
	return 1
}

// list() -> {{id=, expr=, action=, tag=, misfire=, next="RFC3339"}, ...}
func (m *SchedModule) list(L *lua.LState) int {
	tbl := L.NewTable()
	for _, e := range m.scheduler.Entries() {
		row := L.NewTable()
		row.RawSetString("id", lua.LString(e.ID))
		row.RawSetString("expr", lua.LString(e.Expr))
		row.RawSetString("action", lua.LString(e.Action))
		row.RawSetString("tag", lua.LString(e.Tag))
		row.RawSetString("misfire", lua.LString(e.Misfire))
		row.RawSetString("next", lua.LString(e.Next.Format(time.RFC3339)))
		tbl.Append(row)
	}
	L.Push(tbl)
	return 1
}

func optString(tbl *lua.LTable, key string) string {
	if v, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(v)
	}
	return ""
}
