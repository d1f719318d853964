package modules

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/mystic"
)

// LuaToGo converts a Lua value to a Go value. Tables with only positive integer keys
// become slices, other tables become maps.
func LuaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		isArray := true
		maxIdx := 0
		val.ForEach(func(k, _ lua.LValue) {
			if num, ok := k.(lua.LNumber); ok && num >= 1 {
				if idx := int(num); idx > maxIdx {
					maxIdx = idx
				}
			} else {
				isArray = false
			}
		})

		if isArray && maxIdx > 0 {
			arr := make([]any, maxIdx)
			val.ForEach(func(k, v lua.LValue) {
				arr[int(k.(lua.LNumber))-1] = LuaToGo(v)
			})
			return arr
		}

		obj := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			obj[lua.LVAsString(k)] = LuaToGo(v)
		})
		return obj
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// GoToLuaValue converts a Go value to a Lua value
func GoToLuaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []string:
		return StringsToLuaTable(L, val)
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, GoToLuaValue(L, item))
		}
		return tbl
	case map[string]any:
		return MapToLuaTable(L, val)
	case map[string]string:
		tbl := L.NewTable()
		for k, v := range val {
			tbl.RawSetString(k, lua.LString(v))
		}
		return tbl
	case mystic.ZoneState:
		return ZoneStateToLuaTable(L, val)
	case mystic.Color:
		return ColorToLuaTable(L, val)
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// MapToLuaTable converts a Go map to a Lua table
func MapToLuaTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, GoToLuaValue(L, v))
	}
	return tbl
}

// LuaTableToMap converts a Lua table to a Go map, ignoring non-string keys
func LuaTableToMap(tbl *lua.LTable) map[string]any {
	m := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = LuaToGo(v)
		}
	})
	return m
}

// StringsToLuaTable converts a slice to a Lua array
func StringsToLuaTable(L *lua.LState, ss []string) *lua.LTable {
	tbl := L.CreateTable(len(ss), 0)
	for i, s := range ss {
		tbl.RawSetInt(i+1, lua.LString(s))
	}
	return tbl
}

// LuaTableToStrings reads the string values of a Lua array, sorted.
func LuaTableToStrings(tbl *lua.LTable) []string {
	var out []string
	tbl.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	sort.Strings(out)
	return out
}

// ColorToLuaTable converts a color to {r=, g=, b=}
func ColorToLuaTable(L *lua.LState, c mystic.Color) *lua.LTable {
	tbl := L.CreateTable(0, 3)
	tbl.RawSetString("r", lua.LNumber(c.Red))
	tbl.RawSetString("g", lua.LNumber(c.Green))
	tbl.RawSetString("b", lua.LNumber(c.Blue))
	return tbl
}

// ZoneStateToLuaTable converts a state to {style=, color={r,g,b}, bright=, speed=}
func ZoneStateToLuaTable(L *lua.LState, s mystic.ZoneState) *lua.LTable {
	tbl := L.CreateTable(0, 4)
	tbl.RawSetString("style", lua.LString(s.Style))
	tbl.RawSetString("color", ColorToLuaTable(L, s.Color))
	tbl.RawSetString("bright", lua.LNumber(s.Bright))
	tbl.RawSetString("speed", lua.LNumber(s.Speed))
	return tbl
}

// LuaToColor accepts {r=, g=, b=} or a "#rrggbb" string.
func LuaToColor(v lua.LValue) (mystic.Color, error) {
	switch val := v.(type) {
	case lua.LString:
		return mystic.ParseColor(string(val))
	case *lua.LTable:
		var c mystic.Color
		var err error
		if c.Red, err = luaLevel(val.RawGetString("r"), "r"); err != nil {
			return c, err
		}
		if c.Green, err = luaLevel(val.RawGetString("g"), "g"); err != nil {
			return c, err
		}
		if c.Blue, err = luaLevel(val.RawGetString("b"), "b"); err != nil {
			return c, err
		}
		return c, nil
	default:
		return mystic.Color{}, fmt.Errorf("color must be a table or a string, got %s", v.Type())
	}
}

// LuaToZoneStatePatch reads the fields present in tbl.
func LuaToZoneStatePatch(tbl *lua.LTable) (mystic.ZoneStatePatch, error) {
	var p mystic.ZoneStatePatch

	if v := tbl.RawGetString("style"); v != lua.LNil {
		s, ok := v.(lua.LString)
		if !ok {
			return p, fmt.Errorf("style must be a string, got %s", v.Type())
		}
		style := string(s)
		p.Style = &style
	}
	if v := tbl.RawGetString("color"); v != lua.LNil {
		c, err := LuaToColor(v)
		if err != nil {
			return p, err
		}
		p.Color = &c
	}
	if v := tbl.RawGetString("bright"); v != lua.LNil {
		n, err := luaLevel(v, "bright")
		if err != nil {
			return p, err
		}
		p.Bright = &n
	}
	if v := tbl.RawGetString("speed"); v != lua.LNil {
		n, err := luaLevel(v, "speed")
		if err != nil {
			return p, err
		}
		p.Speed = &n
	}
	return p, nil
}

// LuaToZoneState reads a complete state. Every field is required.
func LuaToZoneState(tbl *lua.LTable) (mystic.ZoneState, error) {
	p, err := LuaToZoneStatePatch(tbl)
	if err != nil {
		return mystic.ZoneState{}, err
	}
	if p.Style == nil || p.Color == nil || p.Bright == nil || p.Speed == nil {
		return mystic.ZoneState{}, fmt.Errorf("state needs style, color, bright and speed")
	}
	return p.Apply(mystic.ZoneState{}), nil
}

func luaLevel(v lua.LValue, field string) (uint32, error) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("%s must be a number, got %s", field, v.Type())
	}
	if n < 0 || n > lua.LNumber(^uint32(0)) || n != lua.LNumber(int64(n)) {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %v", field, n)
	}
	return uint32(n), nil
}
