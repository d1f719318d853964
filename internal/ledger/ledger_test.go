package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/mysticd/internal/db"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return New(database.DB)
}

func TestAppendAndFind(t *testing.T) {
	l := openLedger(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, l.Append(Record{
		EventType:     EventZoneWriteOK,
		Device:        "MSI_MB",
		Zone:          "JRGB1",
		Payload:       map[string]any{"op": "set_style", "style": "Static"},
		Source:        "api",
		CorrelationID: "c1",
	}))
	require.NoError(t, l.Append(Record{
		EventType:     EventZoneWriteUnsupported,
		Device:        "MSI_MB",
		Zone:          "JRGB1",
		Payload:       map[string]any{"op": "set_color"},
		Source:        "api",
		CorrelationID: "c1",
	}))
	require.NoError(t, l.Append(Record{EventType: EventSessionReloaded, Source: "lua"}))

	all, err := l.Find(Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, EventSessionReloaded, all[0].EventType, "newest first")

	zone, err := l.Find(Query{Device: "MSI_MB", Zone: "JRGB1"})
	require.NoError(t, err)
	assert.Len(t, zone, 2)

	unsupported, err := l.Find(Query{EventType: EventZoneWriteUnsupported})
	require.NoError(t, err)
	require.Len(t, unsupported, 1)
	assert.Equal(t, "set_color", unsupported[0].Payload["op"])
	assert.Equal(t, base.Add(2*time.Second), unsupported[0].Timestamp)

	recent, err := l.Find(Query{Since: base.Add(3 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	limited, err := l.Find(Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	chain, err := l.ByCorrelation("c1")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, EventZoneWriteOK, chain[0].EventType)
}

func TestDeleteOlderThan(t *testing.T) {
	l := openLedger(t)
	now := time.Now()

	l.now = func() time.Time { return now.Add(-48 * time.Hour) }
	require.NoError(t, l.Append(Record{EventType: EventZoneWriteOK}))
	l.now = func() time.Time { return now }
	require.NoError(t, l.Append(Record{EventType: EventZoneWriteFailed}))

	n, err := l.DeleteOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := l.Find(Query{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, EventZoneWriteFailed, left[0].EventType)
}
