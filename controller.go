package winderconsole

import (
	"context"

	"github.com/etymology/winderconsole/internal/poll"
	"github.com/etymology/winderconsole/internal/server"
)

// The runtime answers the HTTP server. Every call is run on the loop; the
// caller's context only bounds the wait.

var _ server.Controller = (*runtime)(nil)

func (rt *runtime) Status(ctx context.Context) (server.Status, error) {
	var st server.Status
	err := rt.loop.Call(ctx, func() {
		st = server.Status{
			Page:         rt.pages.Active(),
			Pages:        rt.pages.Pages(),
			Connectivity: rt.engine.State().String(),
			Stylesheets:  rt.doc.Stylesheets(),
			Slots:        rt.doc.Slots(),
			Queries:      len(rt.engine.Active()),
		}
	})
	return st, err
}

func (rt *runtime) Action(ctx context.Context, id, value string) error {
	var actionErr error
	if err := rt.loop.Call(ctx, func() {
		actionErr = rt.doc.Dispatch(id, value)
	}); err != nil {
		return err
	}
	return actionErr
}

// Navigate switches pages. The load runs under the console's context so it
// outlives the request that asked for it.
func (rt *runtime) Navigate(ctx context.Context, name, slot string) error {
	if slot == "" {
		slot = rt.startSlot
	}
	return rt.loop.Call(ctx, func() {
		rt.pages.Load(rt.ctx, name, slot, nil, nil, nil)
	})
}

type commandResult struct {
	value any
	err   error
}

func (rt *runtime) Command(ctx context.Context, expr string) (any, error) {
	ch := make(chan commandResult, 1)
	if err := rt.loop.Call(ctx, func() {
		rt.engine.Command(ctx, expr, func(v any, err error) {
			ch <- commandResult{v, err}
		})
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type loginResult struct {
	ok  bool
	err error
}

func (rt *runtime) Login(ctx context.Context, password string) (bool, error) {
	ch := make(chan loginResult, 1)
	if err := rt.loop.Call(ctx, func() {
		poll.Login(ctx, rt.loop, rt.transport, password, func(ok bool, err error) {
			ch <- loginResult{ok, err}
		})
	}); err != nil {
		return false, err
	}
	select {
	case r := <-ch:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
