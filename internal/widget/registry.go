package widget

import (
	"github.com/etymology/winderconsole/internal/module"
	"github.com/etymology/winderconsole/internal/page"
	"github.com/etymology/winderconsole/internal/poll"
)

// RemoteName is the module name of the transport module.
const RemoteName = "Remote"

// Remote is the per-page handle on the polling engine.
type Remote struct {
	engine  *poll.Engine
	scope   *poll.Scope
	surface poll.Surface
}

// Scope returns the page's poll scope.
func (r *Remote) Scope() *poll.Scope { return r.scope }

// Engine returns the polling engine.
func (r *Remote) Engine() *poll.Engine { return r.engine }

// Surface returns the document widgets render into.
func (r *Remote) Surface() poll.Surface { return r.surface }

// Registry returns the module registry of a console: the Remote module plus
// descriptor modules for every other name.
func Registry(engine *poll.Engine, surf poll.Surface) *module.Registry {
	reg := module.NewRegistry()
	reg.Register(RemoteName, remoteFactory(engine, surf))
	reg.SetDefault(descriptorFactory)
	return reg
}

func remoteFactory(engine *poll.Engine, surf poll.Surface) module.Factory {
	return func(mc *module.Context) (any, error) {
		name := mc.Name
		if inst, ok := mc.Loader.Get(page.ManagerName); ok {
			if mgr, ok := inst.(*page.Manager); ok && mgr.Active() != "" {
				name = mgr.Active()
			}
		}
		r := &Remote{engine: engine, scope: engine.NewScope(name), surface: surf}

		mc.Loader.OnShutdown(func(any) {
			r.scope.Suspend()
			engine.Abort()
		}, nil)
		mc.Loader.OnRestore(func(any) {
			r.scope.Resume()
		}, nil)

		mc.Logger.Debug("remote scope opened", "scope", name)
		return r, nil
	}
}
