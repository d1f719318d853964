package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/ledger"
)

// ErrNotFound is returned when invoking an unregistered action.
var ErrNotFound = errors.New("action not found")

// maxDepth bounds RunAction recursion.
const maxDepth = 8

// Invoker runs actions and records the outcome in the ledger
type Invoker struct {
	registry *Registry
	ctrl     *control.Controller
	ledger   control.Recorder
}

// NewInvoker creates a new action invoker. rec may be nil.
func NewInvoker(registry *Registry, ctrl *control.Controller, rec control.Recorder) *Invoker {
	return &Invoker{
		registry: registry,
		ctrl:     ctrl,
		ledger:   rec,
	}
}

// HasAction checks if an action is registered
func (i *Invoker) HasAction(name string) bool {
	_, exists := i.registry.Get(name)
	return exists
}

// Invoke runs the named action. The origin attached to ctx (or a fresh one) is
// recorded with the result and shared by any zone writes the action makes.
func (i *Invoker) Invoke(ctx context.Context, name string, args map[string]any) error {
	origin := control.OriginFrom(ctx)
	ctx = control.WithOrigin(ctx, origin.Source, origin.CorrelationID)
	return i.invoke(ctx, name, args, 0)
}

func (i *Invoker) invoke(ctx context.Context, name string, args map[string]any, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("action %q: nesting deeper than %d", name, maxDepth)
	}

	action, exists := i.registry.Get(name)
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	actx := NewContext(ctx, i.ctrl, func(child string, childArgs map[string]any) error {
		return i.invoke(ctx, child, childArgs, depth+1)
	})

	origin := control.OriginFrom(ctx)
	log.Debug().
		Str("action", name).
		Interface("args", args).
		Str("source", origin.Source).
		Msg("Executing action")

	start := time.Now()
	err := action.Execute(actx, args)
	elapsed := time.Since(start)

	if err != nil {
		i.record(ledger.EventActionFailed, origin, map[string]any{
			"action":      name,
			"error":       err.Error(),
			"duration_ms": elapsed.Milliseconds(),
		})
		log.Warn().Err(err).Str("action", name).Str("source", origin.Source).Msg("Action failed")
		return err
	}

	i.record(ledger.EventActionCompleted, origin, map[string]any{
		"action":      name,
		"duration_ms": elapsed.Milliseconds(),
	})
	return nil
}

func (i *Invoker) record(eventType ledger.EventType, origin control.Origin, payload map[string]any) {
	if i.ledger == nil {
		return
	}
	if err := i.ledger.Append(ledger.Record{
		EventType:     eventType,
		Payload:       payload,
		Source:        origin.Source,
		CorrelationID: origin.CorrelationID,
	}); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to append ledger entry")
	}
}
