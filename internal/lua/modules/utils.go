package modules

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

// UtilsModule provides small helpers to Lua
type UtilsModule struct {
	now func() time.Time
}

// NewUtilsModule creates a new utils module
func NewUtilsModule() *UtilsModule {
	return &UtilsModule{now: time.Now}
}

// Loader is the module loader for Lua
func (m *UtilsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetFuncs(mod, map[string]lua.LGFunction{
		"sleep": m.sleep,
		"uuid":  m.uuid,
		"now":   m.unixNow,
		"hex":   m.hex,
		"color": m.color,
		"blend": m.blend,
	})

	L.Push(mod)
	return 1
}

// sleep(ms) blocks the Lua worker. It returns false if the context was cancelled first.
func (m *UtilsModule) sleep(L *lua.LState) int {
	ms := L.CheckInt(1)

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()

	select {
	case <-t.C:
		L.Push(lua.LTrue)
	case <-ctx.Done():
		L.Push(lua.LFalse)
	}
	return 1
}

func (m *UtilsModule) uuid(L *lua.LState) int {
	L.Push(lua.LString(uuid.NewString()))
	return 1
}

// now() -> unix seconds with millisecond precision
func (m *UtilsModule) unixNow(L *lua.LState) int {
	L.Push(lua.LNumber(float64(m.now().UnixMilli()) / 1000))
	return 1
}

// hex(color) -> "#rrggbb"
func (m *UtilsModule) hex(L *lua.LState) int {
	c, err := LuaToColor(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(lua.LString(c.String()))
	return 1
}

// color("#rrggbb") -> {r=, g=, b=}
func (m *UtilsModule) color(L *lua.LState) int {
	c, err := mystic.ParseColor(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(ColorToLuaTable(L, c))
	return 1
}

// blend(from, to, t) -> color between from (t=0) and to (t=1)
func (m *UtilsModule) blend(L *lua.LState) int {
	from, err := LuaToColor(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	to, err := LuaToColor(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	t := math.Max(0, math.Min(1, float64(L.CheckNumber(3))))

	mix := func(a, b uint32) uint32 {
		return uint32(math.Round(float64(a) + (float64(b)-float64(a))*t))
	}
	L.Push(ColorToLuaTable(L, mystic.Color{
		Red:   mix(from.Red, to.Red),
		Green: mix(from.Green, to.Green),
		Blue:  mix(from.Blue, to.Blue),
	}))
	return 1
}
