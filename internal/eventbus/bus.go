// Package eventbus delivers typed events to subscribers on a bounded worker pool.
package eventbus

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeZoneChanged follows every successful zone write. Data: device, zone,
	// state (mystic.ZoneState, read back after the write), source.
	EventTypeZoneChanged EventType = "zone_changed"
	// EventTypeSessionReloaded follows a successful discovery. Data: devices (count).
	EventTypeSessionReloaded EventType = "session_reloaded"
	// EventTypeProfileApplied follows a profile apply. Data: profile, applied, failed.
	EventTypeProfileApplied EventType = "profile_applied"
	// EventTypeMQTTCommand carries a command received over MQTT. Data: topic, payload.
	EventTypeMQTTCommand EventType = "mqtt_command"
)

// Valid reports whether t is one of the event types above.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeZoneChanged, EventTypeSessionReloaded, EventTypeProfileApplied, EventTypeMQTTCommand:
		return true
	}
	return false
}

// Default configuration
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

// Event represents an event in the system
type Event struct {
	Type EventType
	Data map[string]any
}

// Key groups events that must be handled in publish order. Events about one zone
// share a key; other events are keyed by type.
func (e Event) Key() string {
	device, _ := e.Data["device"].(string)
	zone, _ := e.Data["zone"].(string)
	if device != "" || zone != "" {
		return device + "/" + zone
	}
	return string(e.Type)
}

// Handler is a function that handles events
type Handler func(Event)

type work struct {
	event   Event
	handler Handler
}

// Bus routes events to handlers on a fixed set of workers. Each worker owns a queue
// and every event key maps to one worker, so a handler sees the events of one zone
// in the order they were published.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	queues  []chan work
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// sendMu is held for reading while publishing and for writing while closing the
	// queues, so no send can hit a closed channel.
	sendMu sync.RWMutex
	closed bool
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a bus with workerCount workers. queueSize bounds the
// pending work of each worker.
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		handlers: make(map[EventType][]Handler),
		queues:   make([]chan work, workerCount),
	}

	for i := range b.queues {
		b.queues[i] = make(chan work, queueSize)
		b.wg.Add(1)
		go b.worker(i, b.queues[i])
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

func (b *Bus) worker(id int, queue <-chan work) {
	defer b.wg.Done()

	for w := range queue {
		b.handle(id, w)
	}
}

func (b *Bus) handle(id int, w work) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_type", string(w.event.Type)).
				Int("worker", id).
				Msg("Event handler panicked")
		}
	}()
	w.handler(w.event)
}

func (b *Bus) queueFor(key string) chan work {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return b.queues[h.Sum32()%uint32(len(b.queues))]
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish queues the event for every subscribed handler. It never blocks: when the
// worker's queue is full or the bus is closed the event is dropped.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	b.sendMu.RLock()
	defer b.sendMu.RUnlock()

	if b.closed {
		log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closed, dropping event")
		return
	}

	queue := b.queueFor(event.Key())
	for _, handler := range handlers {
		select {
		case queue <- work{event: event, handler: handler}:
		default:
			b.dropped.Add(1)
			log.Warn().
				Str("event_type", string(event.Type)).
				Str("key", event.Key()).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Dropped returns how many deliveries were dropped on a full queue.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops accepting events, drains the queues and waits for workers until ctx ends.
func (b *Bus) Close(ctx context.Context) {
	b.sendMu.Lock()
	if b.closed {
		b.sendMu.Unlock()
		return
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	b.sendMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}

// Clear removes all handlers
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[EventType][]Handler)
}
