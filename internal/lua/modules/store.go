package modules

import (
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/state"
)

// StoreModule gives scripts a persistent key/value table that survives restarts.
type StoreModule struct {
	store *state.TypedStore[any]
}

// NewStoreModule creates a store module over the script kind of s
func NewStoreModule(s *state.Store) *StoreModule {
	return &StoreModule{store: state.NewTypedStore[any](s, state.KindScript)}
}

// Loader is the module loader for Lua
func (m *StoreModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetFuncs(mod, map[string]lua.LGFunction{
		"get":    m.get,
		"set":    m.set,
		"delete": m.delete,
		"keys":   m.keys,
		"incr":   m.incr,
	})

	L.Push(mod)
	return 1
}

// get(key, [default]) -> value
func (m *StoreModule) get(L *lua.LState) int {
	key := L.CheckString(1)
	def := L.Get(2)

	v, ok, err := m.store.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read script store")
	}
	if err != nil || !ok {
		L.Push(def)
		return 1
	}
	L.Push(GoToLuaValue(L, v))
	return 1
}

// set(key, value). Setting nil deletes the key.
func (m *StoreModule) set(L *lua.LState) int {
	key := L.CheckString(1)
	value := LuaToGo(L.Get(2))

	var err error
	if value == nil {
		_, err = m.store.Delete(key)
	} else {
		err = m.store.Set(key, value)
	}
	if err != nil {
		L.RaiseError("store.set(%q): %s", key, err.Error())
	}
	return 0
}

// delete(key) -> bool
func (m *StoreModule) delete(L *lua.LState) int {
	deleted, err := m.store.Delete(L.CheckString(1))
	if err != nil {
		L.RaiseError("store.delete: %s", err.Error())
		return 0
	}
	L.Push(lua.LBool(deleted))
	return 1
}

// keys() -> sorted keys
func (m *StoreModule) keys(L *lua.LState) int {
	ids, err := m.store.IDs()
	if err != nil {
		L.RaiseError("store.keys: %s", err.Error())
		return 0
	}
	L.Push(StringsToLuaTable(L, ids))
	return 1
}

// incr(key, [delta]) -> new value. A missing key counts from 0.
func (m *StoreModule) incr(L *lua.LState) int {
	key := L.CheckString(1)
	delta := float64(L.OptNumber(2, 1))

	v, err := m.store.Update(key, func(current any, ok bool) (any, error) {
		if !ok {
			return delta, nil
		}
		n, isNum := current.(float64)
		if !isNum {
			return nil, fmt.Errorf("value is %T, not a number", current)
		}
		return n + delta, nil
	})
	if err != nil {
		L.RaiseError("store.incr(%q): %s", key, err.Error())
		return 0
	}
	L.Push(GoToLuaValue(L, v))
	return 1
}
