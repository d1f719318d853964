package modules

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/control"
)

// LogModule forwards log.<level>(msg, [fields]) to zerolog. Lines written while an
// action, event handler or schedule runs carry its origin.
type LogModule struct{}

// NewLogModule creates a new log module
func NewLogModule() *LogModule {
	return &LogModule{}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetFuncs(mod, map[string]lua.LGFunction{
		"debug": m.emitter(zerolog.DebugLevel),
		"info":  m.emitter(zerolog.InfoLevel),
		"warn":  m.emitter(zerolog.WarnLevel),
		"error": m.emitter(zerolog.ErrorLevel),
	})

	L.Push(mod)
	return 1
}

func (m *LogModule) emitter(level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		event := log.WithLevel(level).Str("component", "lua")
		if ctx := L.Context(); ctx != nil {
			if o, ok := control.LookupOrigin(ctx); ok {
				event = event.Str("source", o.Source).Str("correlation_id", o.CorrelationID)
			}
		}

		if tbl, ok := L.Get(2).(*lua.LTable); ok {
			tbl.ForEach(func(k, v lua.LValue) {
				event = event.Interface(lua.LVAsString(k), LuaToGo(v))
			})
		}
		event.Msg(msg)
		return 0
	}
}
