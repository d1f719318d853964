package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Min, Sec int
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(expr string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(expr)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:MM or HH:MM:SS", expr)
	}

	var c Clock
	c.Hour, _ = strconv.Atoi(m[1])
	c.Min, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		c.Sec, _ = strconv.Atoi(m[3])
	}

	if c.Hour > 23 || c.Min > 59 || c.Sec > 59 {
		return Clock{}, fmt.Errorf("invalid time %q: out of range", expr)
	}
	return c, nil
}

// On returns the clock time on the calendar day of t, in t's location. A time
// skipped by a DST transition normalizes to the following wall-clock time.
func (c Clock) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Min, c.Sec, 0, t.Location())
}

func (c Clock) String() string {
	if c.Sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Min, c.Sec)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Min)
}
