// Package scheduler fires script actions at fixed times of day or at fixed intervals.
// Different schedule types implement the Schedule interface.
package scheduler

import (
	"fmt"
	"time"
)

// MisfirePolicy defines how to handle occurrences missed while the daemon was down
type MisfirePolicy string

const (
	MisfirePolicySkip      MisfirePolicy = "skip"       // Skip missed occurrences on boot
	MisfirePolicyRunLatest MisfirePolicy = "run_latest" // Run the most recent missed occurrence on boot
)

// ParseMisfirePolicy parses a policy name. Empty means skip.
func ParseMisfirePolicy(s string) (MisfirePolicy, error) {
	switch MisfirePolicy(s) {
	case "", MisfirePolicySkip:
		return MisfirePolicySkip, nil
	case MisfirePolicyRunLatest:
		return MisfirePolicyRunLatest, nil
	}
	return "", fmt.Errorf("unknown misfire policy %q", s)
}

// Schedule is a source of timed action invocations.
type Schedule interface {
	// ID returns the unique identifier for this schedule
	ID() string

	// Tag returns the optional tag for grouping schedules
	Tag() string

	// Next returns the next occurrence strictly after the given time, or nil if none
	Next(after time.Time) *Occurrence

	// Prev returns the latest occurrence strictly before the given time, or nil if none
	Prev(before time.Time) *Occurrence

	// ActionName returns the name of the action to invoke
	ActionName() string

	// ActionArgs returns the arguments to pass to the action
	ActionArgs() map[string]any

	// MisfirePolicy returns how to handle missed occurrences on boot
	MisfirePolicy() MisfirePolicy

	// Expr describes the timing for listings, e.g. "22:30" or "every 30m0s"
	Expr() string
}

// Occurrence is a specific firing point of a schedule
type Occurrence struct {
	// ID uniquely identifies this occurrence, e.g. "lights_off/1704067200". It is
	// used as the correlation id of the invocation.
	ID string

	ScheduleID string
	Time       time.Time
}

// NewOccurrence creates an occurrence with the standard ID format
func NewOccurrence(scheduleID string, t time.Time) *Occurrence {
	return &Occurrence{
		ID:         fmt.Sprintf("%s/%d", scheduleID, t.Unix()),
		ScheduleID: scheduleID,
		Time:       t,
	}
}

// NewOccurrenceWithSuffix creates an occurrence with a custom suffix, e.g. for boot recovery
func NewOccurrenceWithSuffix(scheduleID string, t time.Time, suffix string) *Occurrence {
	return &Occurrence{
		ID:         fmt.Sprintf("%s/%s/%d", scheduleID, suffix, t.Unix()),
		ScheduleID: scheduleID,
		Time:       t,
	}
}

// DailySchedule fires once a day at a wall-clock time in its location.
type DailySchedule struct {
	id            string
	tag           string
	clock         Clock
	loc           *time.Location
	actionName    string
	actionArgs    map[string]any
	misfirePolicy MisfirePolicy
}

// NewDailySchedule creates a daily schedule from a clock expression such as "22:30".
func NewDailySchedule(
	id string,
	clockExpr string,
	actionName string,
	actionArgs map[string]any,
	tag string,
	misfirePolicy MisfirePolicy,
	loc *time.Location,
) (*DailySchedule, error) {
	clock, err := ParseClock(clockExpr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	return &DailySchedule{
		id:            id,
		tag:           tag,
		clock:         clock,
		loc:           loc,
		actionName:    actionName,
		actionArgs:    actionArgs,
		misfirePolicy: misfirePolicy,
	}, nil
}

func (s *DailySchedule) ID() string                   { return s.id }
func (s *DailySchedule) Tag() string                  { return s.tag }
func (s *DailySchedule) ActionName() string           { return s.actionName }
func (s *DailySchedule) ActionArgs() map[string]any   { return s.actionArgs }
func (s *DailySchedule) MisfirePolicy() MisfirePolicy { return s.misfirePolicy }
func (s *DailySchedule) Expr() string                 { return s.clock.String() }

// Next returns the next occurrence after the given time.
func (s *DailySchedule) Next(after time.Time) *Occurrence {
	t := s.clock.On(after.In(s.loc))
	if !t.After(after) {
		t = s.clock.On(after.In(s.loc).AddDate(0, 0, 1))
	}
	return NewOccurrence(s.id, t)
}

// Prev returns the previous occurrence before the given time.
func (s *DailySchedule) Prev(before time.Time) *Occurrence {
	t := s.clock.On(before.In(s.loc))
	if !t.Before(before) {
		t = s.clock.On(before.In(s.loc).AddDate(0, 0, -1))
	}
	return NewOccurrence(s.id, t)
}

// PeriodicSchedule fires at a fixed interval counted from its creation.
type PeriodicSchedule struct {
	id         string
	tag        string
	interval   time.Duration
	startTime  time.Time
	actionName string
	actionArgs map[string]any
}

// NewPeriodicSchedule creates a periodic schedule whose first occurrence is one
// interval after start.
func NewPeriodicSchedule(
	id string,
	interval time.Duration,
	actionName string,
	actionArgs map[string]any,
	tag string,
	start time.Time,
) (*PeriodicSchedule, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}
	return &PeriodicSchedule{
		id:         id,
		tag:        tag,
		interval:   interval,
		startTime:  start,
		actionName: actionName,
		actionArgs: actionArgs,
	}, nil
}

func (s *PeriodicSchedule) ID() string                 { return s.id }
func (s *PeriodicSchedule) Tag() string                { return s.tag }
func (s *PeriodicSchedule) ActionName() string         { return s.actionName }
func (s *PeriodicSchedule) ActionArgs() map[string]any { return s.actionArgs }
func (s *PeriodicSchedule) Expr() string               { return "every " + s.interval.String() }

// MisfirePolicy is always skip: periodics don't replay missed occurrences.
func (s *PeriodicSchedule) MisfirePolicy() MisfirePolicy { return MisfirePolicySkip }

// Next returns the next occurrence after the given time.
func (s *PeriodicSchedule) Next(after time.Time) *Occurrence {
	if after.Before(s.startTime) {
		return NewOccurrence(s.id, s.startTime.Add(s.interval))
	}

	ticks := int64(after.Sub(s.startTime) / s.interval)
	return NewOccurrence(s.id, s.startTime.Add(time.Duration(ticks+1)*s.interval))
}

// Prev returns the previous occurrence before the given time.
func (s *PeriodicSchedule) Prev(before time.Time) *Occurrence {
	elapsed := before.Sub(s.startTime)
	if elapsed <= s.interval {
		return nil
	}

	ticks := int64(elapsed / s.interval)
	prev := s.startTime.Add(time.Duration(ticks) * s.interval)
	if prev.Equal(before) {
		prev = prev.Add(-s.interval)
	}
	return NewOccurrence(s.id, prev)
}
