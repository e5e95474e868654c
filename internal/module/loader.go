package module

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"

	"github.com/google/uuid"

	"github.com/etymology/winderconsole/internal/loop"
)

// State is the load state of a module.
type State int

const (
	NotRequested State = iota
	Loading
	Loaded
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case NotRequested:
		return "not-requested"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FailureFunc is notified when a module fails to fetch or construct.
type FailureFunc func(name string, err error)

type entry struct {
	state    State
	instance any
	err      error
}

type hook struct {
	fn    func(any)
	param any
}

// LoadOption configures a single [Loader.Load] call.
type LoadOption func(*loadRequest)

type loadRequest struct {
	params any
}

// WithParams passes p to the factories of modules fetched by this request.
func WithParams(p any) LoadOption {
	return func(r *loadRequest) { r.params = p }
}

// Loader loads modules and keeps one instance per name.
//
// The zero value is not usable; create loaders with [NewLoader].
type Loader struct {
	loop     *loop.Loop
	source   Source
	registry *Registry
	logger   *slog.Logger

	entries map[string]*entry

	// loading counts fetches that have not settled yet. queued holds
	// completion callbacks waiting for it to reach zero.
	loading int
	queued  []func()

	failureHandlers []FailureFunc
	shutdownHooks   []hook
	restoreHooks    []hook
}

// NewLoader creates a [Loader] that fetches from src and constructs with reg.
// Completions of asynchronous fetches are posted onto l.
func NewLoader(l *loop.Loop, src Source, reg *Registry, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		loop:     l,
		source:   src,
		registry: reg,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
}

// Load requests one or more modules.
//
// Each name is requested in order. onComplete is attached to the last name
// only and is queued on the loader's completion barrier, so it runs once,
// after every module in flight (including modules requested by factories
// while this request was pending) has settled. Names already loaded or
// loading are not fetched again. onFailure, which may be nil, is called for
// each module of this request that fails.
//
// An empty names list queues onComplete directly.
func (ld *Loader) Load(ctx context.Context, names []string, onComplete func(), onFailure FailureFunc, opts ...LoadOption) {
	req := &loadRequest{}
	for _, opt := range opts {
		opt(req)
	}

	if len(names) == 0 {
		if onComplete != nil {
			ld.queued = append(ld.queued, onComplete)
		}
		ld.drain()
		return
	}

	last := len(names) - 1
	for i, name := range names {
		var cb func()
		if i == last {
			cb = onComplete
		}
		ld.loadOne(ctx, name, req.params, cb, onFailure)
	}
}

func (ld *Loader) loadOne(ctx context.Context, name string, params any, onComplete func(), onFailure FailureFunc) {
	if onComplete != nil {
		ld.queued = append(ld.queued, onComplete)
	}

	e, ok := ld.entries[name]
	if ok && (e.state == Loading || e.state == Loaded) {
		ld.drain()
		return
	}
	if !ok {
		e = &entry{}
		ld.entries[name] = e
	}
	e.state = Loading
	e.err = nil
	ld.loading++

	res := Resolve(name)
	ld.logger.Debug("module fetch started", "module", name, "path", res.Path)

	loop.Spawn(ld.loop, ctx,
		func(ctx context.Context) ([]byte, error) {
			return ld.source.Fetch(ctx, res.Path)
		},
		func(body []byte, err error) {
			ld.settle(ctx, name, res, body, err, params, onFailure)
		},
	)
}

// settle runs on the loop once a module fetch returns.
func (ld *Loader) settle(ctx context.Context, name string, res Resolution, body []byte, fetchErr error, params any, onFailure FailureFunc) {
	e := ld.entries[name]
	if e.state == Loaded {
		// seeded with Register while the fetch was in flight
		ld.loading--
		ld.drain()
		return
	}

	err := fetchErr
	if err == nil {
		var inst any
		inst, err = ld.construct(ctx, name, res, body, params)
		if err == nil {
			e.state = Loaded
			e.instance = inst
			ld.logger.Debug("module loaded", "module", name)
		}
	}

	if err != nil {
		e.state = Failed
		e.err = err
		ld.logger.Warn("module load failed", "module", name, "error", err.Error())
		if onFailure != nil {
			onFailure(name, err)
		}
		for _, h := range ld.failureHandlers {
			h(name, err)
		}
	}

	ld.loading--
	ld.drain()
}

// construct looks up and calls the module's factory with panic recovery.
func (ld *Loader) construct(ctx context.Context, name string, res Resolution, body []byte, params any) (inst any, err error) {
	factory, ok := ld.registry.Lookup(res.Constructor)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConstructor, res.Constructor)
	}

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			ld.logger.Error("module constructor panic",
				"module", name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			inst = nil
			err = fmt.Errorf("module %s constructor panic (correlation_id: %s)", name, correlationID)
		}
	}()

	return factory(&Context{
		Ctx:    ctx,
		Name:   name,
		Body:   body,
		Params: params,
		Loader: ld,
		Logger: ld.logger.With("module", name),
	})
}

// drain runs queued completions, newest first, while nothing is loading.
// A completion that starts new loads pauses the drain until they settle.
func (ld *Loader) drain() {
	for ld.loading == 0 && len(ld.queued) > 0 {
		last := len(ld.queued) - 1
		fn := ld.queued[last]
		ld.queued[last] = nil
		ld.queued = ld.queued[:last]
		fn()
	}
}

// Get returns the instance of a loaded module. It never blocks.
func (ld *Loader) Get(name string) (any, bool) {
	e, ok := ld.entries[name]
	if !ok || e.state != Loaded {
		return nil, false
	}
	return e.instance, true
}

// State returns the load state of a module.
func (ld *Loader) State(name string) State {
	e, ok := ld.entries[name]
	if !ok {
		return NotRequested
	}
	return e.state
}

// Err returns the error that failed a module, if any.
func (ld *Loader) Err(name string) error {
	if e, ok := ld.entries[name]; ok {
		return e.err
	}
	return nil
}

// Names returns the names of all requested modules, sorted.
func (ld *Loader) Names() []string {
	names := make([]string, 0, len(ld.entries))
	for name := range ld.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register seeds an already-constructed singleton under name.
func (ld *Loader) Register(name string, instance any) {
	ld.entries[name] = &entry{state: Loaded, instance: instance}
}

// Pending reports how many module fetches have not settled yet.
func (ld *Loader) Pending() int {
	return ld.loading
}

// OnFailure adds a handler notified of every module failure on this loader.
func (ld *Loader) OnFailure(fn FailureFunc) {
	ld.failureHandlers = append(ld.failureHandlers, fn)
}

// OnShutdown registers fn to be called with param by [Loader.Shutdown].
func (ld *Loader) OnShutdown(fn func(any), param any) {
	ld.shutdownHooks = append(ld.shutdownHooks, hook{fn: fn, param: param})
}

// OnRestore registers fn to be called with param by [Loader.Restore].
func (ld *Loader) OnRestore(fn func(any), param any) {
	ld.restoreHooks = append(ld.restoreHooks, hook{fn: fn, param: param})
}

// Shutdown runs shutdown hooks, most recently registered first.
func (ld *Loader) Shutdown() {
	for i := len(ld.shutdownHooks) - 1; i >= 0; i-- {
		h := ld.shutdownHooks[i]
		h.fn(h.param)
	}
}

// Restore runs restore hooks in registration order.
func (ld *Loader) Restore() {
	for _, h := range ld.restoreHooks {
		h.fn(h.param)
	}
}
