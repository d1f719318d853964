// Package middleware batches bus events before they reach a script handler.
package middleware

import (
	"sync"
	"time"

	"github.com/dokzlo13/mysticd/internal/eventbus"
)

// FlushFunc receives a batch of events in arrival order.
type FlushFunc func(events []eventbus.Event)

// Collector accumulates events and hands them to its FlushFunc in batches.
type Collector interface {
	AddEvent(e eventbus.Event)
	Close()
}

// Options selects a collector. At most one field is expected to be set; the first
// non-zero of QuietMs, IntervalMs and Count wins.
type Options struct {
	QuietMs    int
	IntervalMs int
	Count      int
}

// IsZero reports whether no batching was requested.
func (o Options) IsZero() bool {
	return o.QuietMs <= 0 && o.IntervalMs <= 0 && o.Count <= 0
}

// New creates the collector described by opts.
func New(opts Options, onFlush FlushFunc) Collector {
	switch {
	case opts.QuietMs > 0:
		return NewQuietCollector(opts.QuietMs, onFlush)
	case opts.IntervalMs > 0:
		return NewIntervalCollector(opts.IntervalMs, onFlush)
	case opts.Count > 0:
		return NewCountCollector(opts.Count, onFlush)
	default:
		return NewImmediateCollector(onFlush)
	}
}

// ImmediateCollector flushes every event on its own
type ImmediateCollector struct {
	onFlush FlushFunc
}

// NewImmediateCollector creates a new ImmediateCollector
func NewImmediateCollector(onFlush FlushFunc) *ImmediateCollector {
	return &ImmediateCollector{onFlush: onFlush}
}

// AddEvent flushes e immediately
func (c *ImmediateCollector) AddEvent(e eventbus.Event) {
	c.onFlush([]eventbus.Event{e})
}

// Close is a no-op for ImmediateCollector
func (c *ImmediateCollector) Close() {}

// QuietCollector flushes once no event arrived for N ms
type QuietCollector struct {
	mu      sync.Mutex
	events  []eventbus.Event
	quiet   time.Duration
	timer   *time.Timer
	closed  bool
	onFlush FlushFunc
}

// NewQuietCollector creates a new QuietCollector
func NewQuietCollector(quietMs int, onFlush FlushFunc) *QuietCollector {
	return &QuietCollector{
		quiet:   time.Duration(quietMs) * time.Millisecond,
		onFlush: onFlush,
	}
}

// AddEvent adds an event and restarts the quiet timer
func (c *QuietCollector) AddEvent(e eventbus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.events = append(c.events, e)
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.quiet, c.flush)
}

func (c *QuietCollector) flush() {
	c.mu.Lock()
	events := c.events
	c.events = nil
	c.mu.Unlock()

	if len(events) > 0 {
		c.onFlush(events)
	}
}

// Close stops the timer and drops pending events
func (c *QuietCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.events = nil
}
