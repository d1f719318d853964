package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/db"
	"github.com/dokzlo13/mysticd/internal/ledger"
	"github.com/dokzlo13/mysticd/internal/mystic"
	"github.com/dokzlo13/mysticd/internal/simulator"
	"github.com/dokzlo13/mysticd/internal/state"
)

func newManager(t *testing.T) (*Manager, *control.Controller, *ledger.Ledger) {
	t.Helper()

	sdk, err := simulator.Open(simulator.DefaultFixture())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sdk.Close() })

	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	l := ledger.New(database.DB)
	ctrl := control.New(sdk, control.WithLedger(l))
	return NewManager(ctrl, state.NewStore(database.DB), l, nil), ctrl, l
}

func TestCaptureAndApply(t *testing.T) {
	m, ctrl, l := newManager(t)
	ctx := context.Background()

	p, err := m.Capture("evening", nil)
	require.NoError(t, err)
	assert.Len(t, p.Zones, 3)
	before := p.Zones["MSI_MB/JRGB1"]

	// Lights off, then restore.
	_, err = ctrl.SetState(ctx, "MSI_MB", "JRGB1", mystic.ZoneState{Style: "NoAnimation", Bright: 0, Speed: 0})
	require.NoError(t, err)

	res, err := m.Apply(control.WithOrigin(ctx, "test", "apply-1"), "evening")
	require.NoError(t, err)
	assert.Len(t, res.Applied, 3)
	assert.Empty(t, res.Failed)

	got, err := ctrl.State("MSI_MB", "JRGB1")
	require.NoError(t, err)
	assert.Equal(t, before, got)

	entries, err := l.ByCorrelation("apply-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, ledger.EventProfileApplied, entries[3].EventType)
}

func TestCaptureFiltered(t *testing.T) {
	m, _, _ := newManager(t)

	p, err := m.Capture("kb", mystic.Names("MSI_KEYBOARD"))
	require.NoError(t, err)
	assert.Len(t, p.Zones, 1)
	assert.Contains(t, p.Zones, "MSI_KEYBOARD/KEYS")
}

func TestApplyReportsFailures(t *testing.T) {
	m, _, _ := newManager(t)

	p, err := m.Capture("broken", mystic.Names("MSI_KEYBOARD"))
	require.NoError(t, err)
	p.Zones["MSI_GPU/FAN"] = mystic.ZoneState{Style: "Static"}
	require.NoError(t, m.store.Set("broken", *p))

	res, err := m.Apply(context.Background(), "broken")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSI_KEYBOARD/KEYS"}, res.Applied)
	assert.Contains(t, res.Failed["MSI_GPU/FAN"], "unknown device")
}

func TestProfileLifecycle(t *testing.T) {
	m, _, _ := newManager(t)

	_, err := m.Apply(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Capture("  ", nil)
	assert.Error(t, err)

	_, err = m.Capture("b", nil)
	require.NoError(t, err)
	_, err = m.Capture("a", nil)
	require.NoError(t, err)

	names, err := m.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, m.Delete("a"))
	assert.ErrorIs(t, m.Delete("a"), ErrNotFound)

	_, err = m.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
}
