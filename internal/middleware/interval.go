package middleware

import (
	"sync"
	"time"

	"github.com/dokzlo13/mysticd/internal/eventbus"
)

// IntervalCollector flushes N ms after the first event of a batch
type IntervalCollector struct {
	mu       sync.Mutex
	events   []eventbus.Event
	interval time.Duration
	timer    *time.Timer
	started  bool
	closed   bool
	onFlush  FlushFunc
}

// NewIntervalCollector creates a new IntervalCollector
func NewIntervalCollector(intervalMs int, onFlush FlushFunc) *IntervalCollector {
	return &IntervalCollector{
		interval: time.Duration(intervalMs) * time.Millisecond,
		onFlush:  onFlush,
	}
}

// AddEvent adds an event and starts the interval timer if not already started
func (c *IntervalCollector) AddEvent(e eventbus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.events = append(c.events, e)
	if !c.started {
		c.timer = time.AfterFunc(c.interval, c.flush)
		c.started = true
	}
}

func (c *IntervalCollector) flush() {
	c.mu.Lock()
	events := c.events
	c.events = nil
	c.started = false
	c.mu.Unlock()

	if len(events) > 0 {
		c.onFlush(events)
	}
}

// Close stops the timer
func (c *IntervalCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
}
