package middleware

import (
	"sync"

	"github.com/dokzlo13/mysticd/internal/eventbus"
)

// CountCollector flushes after N events
type CountCollector struct {
	mu      sync.Mutex
	events  []eventbus.Event
	target  int
	onFlush FlushFunc
}

// NewCountCollector creates a new CountCollector
func NewCountCollector(count int, onFlush FlushFunc) *CountCollector {
	return &CountCollector{
		target:  count,
		onFlush: onFlush,
	}
}

// AddEvent adds an event and flushes if target count is reached
func (c *CountCollector) AddEvent(e eventbus.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	var events []eventbus.Event
	if len(c.events) >= c.target {
		events = c.events
		c.events = nil
	}
	c.mu.Unlock()

	if events != nil {
		c.onFlush(events)
	}
}

// Close is a no-op for CountCollector; a partial batch is dropped
func (c *CountCollector) Close() {}
