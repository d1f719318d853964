package modules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/mysticd/internal/control"
)

func utilsState(t *testing.T) *lua.LState {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)

	m := NewUtilsModule()
	m.now = func() time.Time { return time.UnixMilli(1_700_000_000_500) }
	L.PreloadModule("utils", m.Loader)
	L.PreloadModule("log", NewLogModule().Loader)
	require.NoError(t, L.DoString(`utils = require("utils")`))
	return L
}

func TestUtilsColors(t *testing.T) {
	L := utilsState(t)

	assert.Equal(t, lua.LString("#0a0b0c"), eval(t, L, `utils.hex({r = 10, g = 11, b = 12})`))
	assert.Equal(t, lua.LNumber(255), eval(t, L, `utils.color("#ff8000").r`))
	assert.Equal(t, lua.LNumber(128), eval(t, L, `utils.color("ff8000").g`))
	assert.Equal(t, lua.LString("#804000"), eval(t, L, `utils.hex(utils.blend("#000000", "#ff8000", 0.5))`))
	assert.Equal(t, lua.LString("#ff8000"), eval(t, L, `utils.hex(utils.blend("#000000", "#ff8000", 3))`))

	err := L.DoString(`utils.color("purple")`)
	assert.ErrorContains(t, err, "invalid color")
}

func TestUtilsNowAndUUID(t *testing.T) {
	L := utilsState(t)

	assert.Equal(t, lua.LNumber(1_700_000_000.5), eval(t, L, `utils.now()`))
	assert.Len(t, eval(t, L, `utils.uuid()`).String(), 36)
}

func TestLogWithOrigin(t *testing.T) {
	L := utilsState(t)
	L.SetContext(control.WithOrigin(context.Background(), "scheduler", "night/1"))

	require.NotPanics(t, func() {
		require.NoError(t, L.DoString(`require("log").info("dimmed", {zones = 3})`))
	})
}
