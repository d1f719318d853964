// Package actions provides the named action registry and the invoker that runs
// actions with ledger bookkeeping.
package actions

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAlreadyDefined is returned when an action name is registered twice.
var ErrAlreadyDefined = errors.New("action already defined")

// Action is a named unit of work started over HTTP, MQTT, the scheduler or
// another action.
type Action interface {
	Name() string
	Execute(ctx *Context, args map[string]any) error
}

// Func adapts a Go function to Action.
type Func struct {
	name string
	fn   func(ctx *Context, args map[string]any) error
}

// NewFunc wraps fn as an action called name.
func NewFunc(name string, fn func(ctx *Context, args map[string]any) error) *Func {
	return &Func{name: name, fn: fn}
}

func (a *Func) Name() string { return a.name }

func (a *Func) Execute(ctx *Context, args map[string]any) error {
	return a.fn(ctx, args)
}

// Info describes a registered action.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type definition struct {
	action      Action
	description string
}

// Registry holds the actions defined by the loaded script.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]definition)}
}

// Register adds an action with an optional description. Names are unique.
func (r *Registry) Register(action Action, description string) error {
	name := action.Name()
	if name == "" {
		return fmt.Errorf("action name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyDefined, name)
	}
	r.definitions[name] = definition{action: action, description: description}
	return nil
}

// RegisterFunc adds a Go function as an action.
func (r *Registry) RegisterFunc(name, description string, fn func(ctx *Context, args map[string]any) error) error {
	return r.Register(NewFunc(name, fn), description)
}

// Get looks up an action by name.
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[name]
	return d.action, ok
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	infos := r.List()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// List describes every registered action, ordered by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.definitions))
	for name, d := range r.definitions {
		infos = append(infos, Info{Name: name, Description: d.description})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
