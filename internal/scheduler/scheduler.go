package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/ledger"
)

// Source is the origin source of scheduled invocations.
const Source = "scheduler"

// idleSleep bounds the sleep when no schedule is registered.
const idleSleep = time.Hour

// Runner invokes actions by name.
type Runner interface {
	InvokeAction(ctx context.Context, name string, args map[string]any) error
}

// History reports the ledger entries recorded under a correlation id. It is used
// to skip occurrences that already completed.
type History interface {
	ByCorrelation(id string) ([]*ledger.Entry, error)
}

// Scheduler keeps schedule definitions in memory and invokes their actions when
// they come due. Each invocation uses the occurrence ID as correlation id.
type Scheduler struct {
	mu        sync.RWMutex
	schedules map[string]Schedule

	runner  Runner
	history History
	tz      *time.Location
	now     func() time.Time

	reschedule chan struct{}
}

// New creates a scheduler. history may be nil. An unknown timezone falls back to
// the local zone.
func New(runner Runner, history History, timezone string) *Scheduler {
	tz := time.Local
	if timezone != "" {
		loaded, err := time.LoadLocation(timezone)
		if err != nil {
			log.Warn().Err(err).Str("timezone", timezone).Msg("Failed to load timezone, using local time")
		} else {
			tz = loaded
		}
	}

	return &Scheduler{
		schedules:  make(map[string]Schedule),
		runner:     runner,
		history:    history,
		tz:         tz,
		now:        time.Now,
		reschedule: make(chan struct{}, 1),
	}
}

// SetRunner replaces the runner. It must be called before Run.
func (s *Scheduler) SetRunner(r Runner) {
	s.runner = r
}

// Timezone returns the location daily schedules are evaluated in
func (s *Scheduler) Timezone() *time.Location {
	return s.tz
}

// Register adds a schedule, replacing one with the same ID
func (s *Scheduler) Register(sched Schedule) {
	s.mu.Lock()
	s.schedules[sched.ID()] = sched
	s.mu.Unlock()

	log.Debug().
		Str("id", sched.ID()).
		Str("expr", sched.Expr()).
		Str("tag", sched.Tag()).
		Str("action", sched.ActionName()).
		Msg("Schedule registered")

	s.notifyReschedule()
}

// Unregister removes a schedule. It reports whether the schedule existed.
func (s *Scheduler) Unregister(id string) bool {
	s.mu.Lock()
	_, ok := s.schedules[id]
	delete(s.schedules, id)
	s.mu.Unlock()

	if ok {
		s.notifyReschedule()
	}
	return ok
}

// Daily creates and registers a daily schedule
func (s *Scheduler) Daily(id, clockExpr, actionName string, args map[string]any, tag string, misfire MisfirePolicy) error {
	sched, err := NewDailySchedule(id, clockExpr, actionName, args, tag, misfire, s.tz)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", id, err)
	}
	s.Register(sched)
	return nil
}

// Every creates and registers a periodic schedule starting now
func (s *Scheduler) Every(id string, interval time.Duration, actionName string, args map[string]any, tag string) error {
	sched, err := NewPeriodicSchedule(id, interval, actionName, args, tag, s.now())
	if err != nil {
		return fmt.Errorf("schedule %s: %w", id, err)
	}
	s.Register(sched)
	return nil
}

func (s *Scheduler) notifyReschedule() {
	select {
	case s.reschedule <- struct{}{}:
	default:
	}
}

// Run invokes due occurrences until ctx ends. Invocations run one at a time on
// this goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Str("timezone", s.tz.String()).Msg("Scheduler started")

	for {
		occ, sched := s.nextOccurrence(s.now())

		sleep := idleSleep
		if occ != nil {
			sleep = occ.Time.Sub(s.now())
			if sleep < 0 {
				sleep = 0
			}
		}

		timer := time.NewTimer(sleep)

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Scheduler stopping")
			return nil

		case <-s.reschedule:
			timer.Stop()
			log.Debug().Msg("Schedules changed, recomputing")

		case <-timer.C:
			if occ != nil {
				s.fire(ctx, sched, occ)
			}
		}
	}
}

// RunBootRecovery invokes the most recent missed occurrence of every run_latest
// schedule, grouped by tag: within a tag only the latest occurrence runs, since
// later schedules supersede earlier ones. Untagged schedules form their own group.
func (s *Scheduler) RunBootRecovery(ctx context.Context) {
	type candidate struct {
		sched Schedule
		prev  *Occurrence
	}

	now := s.now()
	winners := make(map[string]candidate)

	s.mu.RLock()
	for _, sched := range s.schedules {
		if sched.MisfirePolicy() != MisfirePolicyRunLatest {
			continue
		}
		prev := sched.Prev(now)
		if prev == nil {
			continue
		}

		group := sched.Tag()
		if group == "" {
			group = "__untagged:" + sched.ID()
		}
		if existing, ok := winners[group]; !ok || prev.Time.After(existing.prev.Time) {
			winners[group] = candidate{sched: sched, prev: prev}
		}
	}
	s.mu.RUnlock()

	groups := make([]string, 0, len(winners))
	for group := range winners {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	for _, group := range groups {
		w := winners[group]
		log.Info().
			Str("schedule", w.sched.ID()).
			Str("group", group).
			Time("prev_time", w.prev.Time).
			Msg("Boot recovery: running most recent occurrence")
		s.invoke(ctx, w.sched, NewOccurrenceWithSuffix(w.sched.ID(), now, "boot"))
	}
}

func (s *Scheduler) nextOccurrence(after time.Time) (*Occurrence, Schedule) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest *Occurrence
	var source Schedule
	for _, sched := range s.schedules {
		occ := sched.Next(after)
		if occ == nil {
			continue
		}
		if earliest == nil || occ.Time.Before(earliest.Time) {
			earliest = occ
			source = sched
		}
	}
	return earliest, source
}

// fire invokes an occurrence unless the ledger shows it already completed.
func (s *Scheduler) fire(ctx context.Context, sched Schedule, occ *Occurrence) {
	if s.completed(occ.ID) {
		log.Debug().Str("occurrence", occ.ID).Msg("Already completed, skipping")
		return
	}
	s.invoke(ctx, sched, occ)
}

func (s *Scheduler) completed(occurrenceID string) bool {
	if s.history == nil {
		return false
	}
	entries, err := s.history.ByCorrelation(occurrenceID)
	if err != nil {
		log.Warn().Err(err).Str("occurrence", occurrenceID).Msg("Failed to check occurrence history")
		return false
	}
	for _, e := range entries {
		if e.EventType == ledger.EventActionCompleted {
			return true
		}
	}
	return false
}

func (s *Scheduler) invoke(ctx context.Context, sched Schedule, occ *Occurrence) {
	if s.runner == nil {
		log.Warn().Str("schedule", sched.ID()).Msg("No action runner, dropping occurrence")
		return
	}

	log.Info().
		Str("schedule", sched.ID()).
		Str("occurrence", occ.ID).
		Str("action", sched.ActionName()).
		Msg("Running scheduled action")

	ctx = control.WithOrigin(ctx, Source, occ.ID)
	if err := s.runner.InvokeAction(ctx, sched.ActionName(), sched.ActionArgs()); err != nil {
		log.Error().Err(err).
			Str("schedule", sched.ID()).
			Str("action", sched.ActionName()).
			Msg("Scheduled action failed")
	}
}

// Entry describes a registered schedule and its next occurrence.
type Entry struct {
	ID      string    `json:"id"`
	Expr    string    `json:"expr"`
	Action  string    `json:"action"`
	Tag     string    `json:"tag,omitempty"`
	Misfire string    `json:"misfire"`
	Next    time.Time `json:"next"`
}

// Entries lists registered schedules ordered by next occurrence, then ID.
func (s *Scheduler) Entries() []Entry {
	now := s.now()

	s.mu.RLock()
	entries := make([]Entry, 0, len(s.schedules))
	for _, sched := range s.schedules {
		e := Entry{
			ID:      sched.ID(),
			Expr:    sched.Expr(),
			Action:  sched.ActionName(),
			Tag:     sched.Tag(),
			Misfire: string(sched.MisfirePolicy()),
		}
		if occ := sched.Next(now); occ != nil {
			e.Next = occ.Time.In(s.tz)
		}
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Next.Equal(entries[j].Next) {
			return entries[i].Next.Before(entries[j].Next)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}
