package scheduler

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/ledger"
)

type call struct {
	action string
	args   map[string]any
	origin control.Origin
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
}

func (r *fakeRunner) InvokeAction(ctx context.Context, name string, args map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{action: name, args: args, origin: control.OriginFrom(ctx)})
	return nil
}

func (r *fakeRunner) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

type fakeHistory map[string][]*ledger.Entry

func (h fakeHistory) ByCorrelation(id string) ([]*ledger.Entry, error) {
	return h[id], nil
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		expr    string
		want    Clock
		wantErr bool
	}{
		{"22:30", Clock{Hour: 22, Min: 30}, false},
		{"7:05", Clock{Hour: 7, Min: 5}, false},
		{"06:00:15", Clock{Hour: 6, Sec: 15}, false},
		{"24:00", Clock{}, true},
		{"12:60", Clock{}, true},
		{"noon", Clock{}, true},
		{"12", Clock{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseClock(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "06:00:15", Clock{Hour: 6, Sec: 15}.String())
	assert.Equal(t, "22:30", Clock{Hour: 22, Min: 30}.String())
}

func TestDailySchedule(t *testing.T) {
	s, err := NewDailySchedule("off", "22:30", "lights_off", nil, "", MisfirePolicySkip, time.UTC)
	require.NoError(t, err)

	before := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC), s.Next(before).Time)
	assert.Equal(t, time.Date(2024, 3, 9, 22, 30, 0, 0, time.UTC), s.Prev(before).Time)

	at := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, at.AddDate(0, 0, 1), s.Next(at).Time, "next is strictly after")
	assert.Equal(t, at.AddDate(0, 0, -1), s.Prev(at).Time, "prev is strictly before")

	assert.Equal(t, "off/"+itoa(at.Unix()), s.Next(before).ID)

	_, err = NewDailySchedule("bad", "25:00", "x", nil, "", MisfirePolicySkip, time.UTC)
	assert.Error(t, err)
}

func TestPeriodicSchedule(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewPeriodicSchedule("tick", 10*time.Minute, "pulse", nil, "", start)
	require.NoError(t, err)

	assert.Equal(t, start.Add(10*time.Minute), s.Next(start).Time)
	assert.Equal(t, start.Add(30*time.Minute), s.Next(start.Add(25*time.Minute)).Time)
	assert.Nil(t, s.Prev(start.Add(10*time.Minute)))
	assert.Equal(t, start.Add(20*time.Minute), s.Prev(start.Add(25*time.Minute)).Time)
	assert.Equal(t, start.Add(10*time.Minute), s.Prev(start.Add(20*time.Minute)).Time)
	assert.Equal(t, MisfirePolicySkip, s.MisfirePolicy())
	assert.Equal(t, "every 10m0s", s.Expr())

	_, err = NewPeriodicSchedule("bad", 0, "pulse", nil, "", start)
	assert.Error(t, err)
}

func TestBootRecoveryRunsLatestPerTag(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, nil, "UTC")
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Daily("evening", "19:00", "dim", nil, "mood", MisfirePolicyRunLatest))
	require.NoError(t, s.Daily("night", "22:00", "off", nil, "mood", MisfirePolicyRunLatest))
	require.NoError(t, s.Daily("skipped", "21:00", "other", nil, "", MisfirePolicySkip))
	require.NoError(t, s.Daily("alone", "08:00", "wake", map[string]any{"bright": 5}, "", MisfirePolicyRunLatest))

	s.RunBootRecovery(context.Background())

	calls := runner.snapshot()
	require.Len(t, calls, 2)
	actions := []string{calls[0].action, calls[1].action}
	assert.ElementsMatch(t, []string{"off", "wake"}, actions)
	for _, c := range calls {
		assert.Equal(t, Source, c.origin.Source)
		assert.Contains(t, c.origin.CorrelationID, "/boot/")
	}
}

func TestRunFiresPeriodic(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, nil, "UTC")
	require.NoError(t, s.Every("pulse", 20*time.Millisecond, "pulse", map[string]any{"n": 1}, ""))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return len(runner.snapshot()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	c := runner.snapshot()[0]
	assert.Equal(t, "pulse", c.action)
	assert.Equal(t, Source, c.origin.Source)
	assert.Contains(t, c.origin.CorrelationID, "pulse/")
}

func TestFireSkipsCompletedOccurrence(t *testing.T) {
	runner := &fakeRunner{}
	occ := NewOccurrence("off", time.Unix(1700000000, 0))
	history := fakeHistory{occ.ID: {{EventType: ledger.EventActionCompleted}}}
	s := New(runner, history, "UTC")

	sched, err := NewDailySchedule("off", "22:00", "off", nil, "", MisfirePolicySkip, time.UTC)
	require.NoError(t, err)

	s.fire(context.Background(), sched, occ)
	assert.Empty(t, runner.snapshot())

	s.fire(context.Background(), sched, NewOccurrence("off", time.Unix(1700086400, 0)))
	assert.Len(t, runner.snapshot(), 1)
}

func TestRegisterAndEntries(t *testing.T) {
	s := New(nil, nil, "Not/AZone")
	assert.Equal(t, time.Local, s.Timezone())

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.tz = time.UTC

	require.NoError(t, s.Daily("b", "13:00", "x", nil, "", MisfirePolicySkip))
	require.NoError(t, s.Daily("a", "12:30", "y", nil, "t", MisfirePolicyRunLatest))
	assert.Error(t, s.Daily("bad", "nope", "x", nil, "", MisfirePolicySkip))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "12:30", entries[0].Expr)
	assert.Equal(t, "run_latest", entries[0].Misfire)
	assert.Equal(t, time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC), entries[0].Next)

	assert.True(t, s.Unregister("a"))
	assert.False(t, s.Unregister("a"))
	assert.Len(t, s.Entries(), 1)
}

func TestParseMisfirePolicy(t *testing.T) {
	p, err := ParseMisfirePolicy("")
	require.NoError(t, err)
	assert.Equal(t, MisfirePolicySkip, p)

	p, err = ParseMisfirePolicy("run_latest")
	require.NoError(t, err)
	assert.Equal(t, MisfirePolicyRunLatest, p)

	_, err = ParseMisfirePolicy("always")
	assert.Error(t, err)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
