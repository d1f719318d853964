package lua

import (
	"github.com/dokzlo13/mysticd/internal/actions"
	"github.com/dokzlo13/mysticd/internal/control"
	"github.com/dokzlo13/mysticd/internal/profile"
	"github.com/dokzlo13/mysticd/internal/scheduler"
	"github.com/dokzlo13/mysticd/internal/state"
)

// RuntimeDeps groups the services exposed to scripts. Profiles, Store and Scheduler
// may be nil, in which case the matching module is not available.
type RuntimeDeps struct {
	Controller *control.Controller
	Registry   *actions.Registry
	Invoker    *actions.Invoker
	Profiles   *profile.Manager
	Store      *state.Store
	Scheduler  *scheduler.Scheduler
}
