package actions

import (
	"context"

	"github.com/dokzlo13/mysticd/internal/control"
)

// Context is what an action sees while it runs
type Context struct {
	ctx       context.Context
	ctrl      *control.Controller
	runAction func(name string, args map[string]any) error
}

// NewContext creates an action context. runAction may be nil.
func NewContext(ctx context.Context, ctrl *control.Controller, runAction func(name string, args map[string]any) error) *Context {
	return &Context{
		ctx:       ctx,
		ctrl:      ctrl,
		runAction: runAction,
	}
}

// Ctx returns the Go context. It carries the caller's control.Origin.
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Controller returns the zone controller
func (c *Context) Controller() *control.Controller {
	return c.ctrl
}

// RunAction runs another action by name under the same origin
func (c *Context) RunAction(name string, args map[string]any) error {
	if c.runAction != nil {
		return c.runAction(name, args)
	}
	return nil
}
