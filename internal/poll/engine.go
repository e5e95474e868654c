package poll

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/etymology/winderconsole/internal/loop"
)

const defaultInterval = 200 * time.Millisecond

// State is the connectivity state of an [Engine].
type State int

const (
	Nominal State = iota
	Degraded
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Nominal:
		return "nominal"
	case Degraded:
		return "degraded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Callback receives the decoded value of a query. A nil value means the
// remote is unreachable.
type Callback func(value any)

// Controls is the set of interactive controls the engine disables while
// Degraded.
type Controls interface {
	ControlIDs() []string
	ControlEnabled(id string) bool
	SetControlEnabled(id string, enabled bool)
	SetErrorIndicators(on bool)
}

// Locker is implemented by controls that remember their own enablement
// while Degraded, including controls that appear or are put away during the
// outage. The engine uses it instead of its own snapshot when available.
// view.Document implements it.
type Locker interface {
	LockControls()
	UnlockControls()
}

// Surface is what the helpers render into and take user actions from.
// view.Document implements it.
type Surface interface {
	Controls
	SetText(id, text string)
	SetChecked(id string, on bool)
	SetInvalid(id string, invalid bool)
	OnAction(id string, fn func(value string))
}

type noControls struct{}

func (noControls) ControlIDs() []string           { return nil }
func (noControls) ControlEnabled(string) bool     { return false }
func (noControls) SetControlEnabled(string, bool) {}
func (noControls) SetErrorIndicators(bool)        {}

// Option configures an [Engine].
type Option func(*Engine) error

// WithInterval sets the tick interval. The default is 200ms.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive, got %v", d)
		}
		e.interval = d
		return nil
	}
}

// WithControls sets the controls disabled while the engine is Degraded.
func WithControls(c Controls) Option {
	return func(e *Engine) error {
		if c == nil {
			return fmt.Errorf("controls cannot be nil")
		}
		e.controls = c
		return nil
	}
}

// WithLogger sets the engine's logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		e.logger = logger
		return nil
	}
}

// Stats are counters for introspection.
type Stats struct {
	State   string `json:"state"`
	Active  int    `json:"active"`
	Polls   int    `json:"polls"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Engine is the batched polling engine. All methods except Start must be
// called on the loop goroutine.
type Engine struct {
	loop      *loop.Loop
	transport Transport
	controls  Controls
	logger    *slog.Logger
	interval  time.Duration

	ctx    context.Context
	root   *Scope
	scopes []*Scope

	// active holds registrations of resumed scopes in identifier order.
	active []*Registration
	last   map[string]string
	gen    uint64

	guard    int
	cancel   context.CancelFunc
	inflight uint64
	seq      uint64

	state     State
	saved     map[string]bool
	onEnter   []func()
	onExit    []func()
	startOnce sync.Once

	polls, skipped, failed int
}

// NewEngine creates an engine polling through t. Callbacks run on l.
func NewEngine(l *loop.Loop, t Transport, opts ...Option) (*Engine, error) {
	if l == nil {
		return nil, fmt.Errorf("loop cannot be nil")
	}
	if t == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	e := &Engine{
		loop:      l,
		transport: t,
		controls:  noControls{},
		logger:    slog.Default(),
		interval:  defaultInterval,
		ctx:       context.Background(),
		last:      make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.root = e.NewScope("root")
	return e, nil
}

// Start posts a tick onto the loop every interval until ctx is cancelled,
// then aborts any poll in flight. Start is safe to call from any goroutine;
// calls after the first are no-ops.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.loop.Post(func() { e.ctx = ctx })
		go func() {
			ticker := time.NewTicker(e.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					e.loop.Post(e.Abort)
					return
				case <-ticker.C:
					e.loop.Post(func() { e.Tick(ctx) })
				}
			}
		}()
	})
}

// Context returns the context commands issued by helpers run under.
func (e *Engine) Context() context.Context {
	return e.ctx
}

// Tick issues one batched poll unless one is in flight, updates are
// inhibited or no query is active. It reports whether a poll was issued.
func (e *Engine) Tick(ctx context.Context) bool {
	if e.guard != 0 || len(e.active) == 0 {
		e.skipped++
		return false
	}

	e.guard++
	e.seq++
	seq, gen := e.seq, e.gen
	e.inflight = seq
	pctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.polls++

	regs := append([]*Registration(nil), e.active...)
	queries := make([]Query, len(regs))
	for i, r := range regs {
		queries[i] = Query{ID: r.id, Expr: r.query}
	}

	loop.Spawn(e.loop, pctx,
		func(ctx context.Context) (map[string]string, error) {
			return e.transport.Poll(ctx, queries)
		},
		func(values map[string]string, err error) {
			cancelled := pctx.Err() != nil
			cancel()
			e.complete(seq, gen, cancelled, regs, values, err)
		},
	)
	return true
}

// complete runs on the loop when a poll returns.
func (e *Engine) complete(seq, gen uint64, cancelled bool, regs []*Registration, values map[string]string, err error) {
	if e.inflight != seq {
		// aborted; the guard was already released
		return
	}
	e.inflight = 0
	e.cancel = nil
	e.guard--

	if err != nil {
		if cancelled {
			e.logger.Debug("poll cancelled")
			return
		}
		e.fail(err)
		return
	}

	e.restore()
	if gen != e.gen {
		// identifiers were renumbered while the poll was in flight
		return
	}
	for _, r := range regs {
		raw, ok := values[r.id]
		if !ok {
			continue
		}
		if prev, seen := e.last[r.id]; seen && prev == raw {
			continue
		}
		e.last[r.id] = raw
		e.invoke(r, Decode(raw))
		if gen != e.gen {
			return
		}
	}
}

func (e *Engine) fail(err error) {
	e.failed++
	if e.state == Degraded {
		e.logger.Debug("poll failed while degraded", "error", err.Error())
		return
	}
	e.logger.Warn("poll failed, entering degraded state", "error", err.Error())

	for _, r := range append([]*Registration(nil), e.active...) {
		e.invoke(r, nil)
	}
	clear(e.last)

	if lk, ok := e.controls.(Locker); ok {
		lk.LockControls()
	} else {
		e.saved = make(map[string]bool)
		for _, id := range e.controls.ControlIDs() {
			e.saved[id] = e.controls.ControlEnabled(id)
			e.controls.SetControlEnabled(id, false)
		}
	}
	e.controls.SetErrorIndicators(true)
	e.state = Degraded
	for _, fn := range e.onEnter {
		fn()
	}
}

func (e *Engine) restore() {
	if e.state != Degraded {
		return
	}
	e.logger.Info("poll succeeded, leaving degraded state")
	if lk, ok := e.controls.(Locker); ok {
		lk.UnlockControls()
	}
	for id, enabled := range e.saved {
		e.controls.SetControlEnabled(id, enabled)
	}
	e.saved = nil
	e.controls.SetErrorIndicators(false)
	e.state = Nominal
	for _, fn := range e.onExit {
		fn()
	}
}

// invoke calls a registration's callback with panic recovery.
func (e *Engine) invoke(r *Registration, v any) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("query callback panic",
				"query", r.query,
				"id", r.id,
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", p),
				"stack", string(debug.Stack()),
			)
		}
	}()
	r.callback(v)
}

// Inhibit stops ticks from issuing polls until a matching Uninhibit.
// Calls nest.
func (e *Engine) Inhibit() {
	e.guard++
}

// Uninhibit undoes one Inhibit.
func (e *Engine) Uninhibit() {
	e.guard--
}

// Abort cancels the poll in flight, if any, and releases its guard. The
// cancelled poll changes no state.
func (e *Engine) Abort() {
	if e.inflight == 0 {
		return
	}
	e.cancel()
	e.cancel = nil
	e.inflight = 0
	e.guard--
}

// InFlight reports whether a poll is outstanding.
func (e *Engine) InFlight() bool {
	return e.inflight != 0
}

// State returns the connectivity state.
func (e *Engine) State() State {
	return e.state
}

// OnErrorEnter registers fn to run when the engine becomes Degraded.
func (e *Engine) OnErrorEnter(fn func()) {
	e.onEnter = append(e.onEnter, fn)
}

// OnErrorExit registers fn to run when the engine returns to Nominal.
func (e *Engine) OnErrorExit(fn func()) {
	e.onExit = append(e.onExit, fn)
}

// Stats returns the engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		State:   e.state.String(),
		Active:  len(e.active),
		Polls:   e.polls,
		Skipped: e.skipped,
		Failed:  e.failed,
	}
}

// Active returns the active queries in identifier order.
func (e *Engine) Active() []Query {
	qs := make([]Query, len(e.active))
	for i, r := range e.active {
		qs[i] = Query{ID: r.id, Expr: r.query}
	}
	return qs
}

// Periodic registers a query on the engine's root scope, which is never
// suspended.
func (e *Engine) Periodic(query string, cb Callback) *Registration {
	return e.root.Periodic(query, cb)
}

// Command sends a single expression outside the poll cycle. cb runs on the
// loop with the decoded value. Command failures do not change the engine's
// state.
func (e *Engine) Command(ctx context.Context, expr string, cb func(value any, err error)) {
	loop.Spawn(e.loop, ctx,
		func(ctx context.Context) (string, error) {
			return e.transport.Command(ctx, expr)
		},
		func(raw string, err error) {
			if err != nil {
				e.logger.Warn("command failed", "command", expr, "error", err.Error())
				if cb != nil {
					cb(nil, err)
				}
				return
			}
			if cb != nil {
				cb(Decode(raw), nil)
			}
		},
	)
}

// renumber rebuilds the active set from the resumed scopes and assigns dense
// identifiers in registration order. The last-observed table is cleared.
func (e *Engine) renumber() {
	e.active = e.active[:0]
	for _, s := range e.scopes {
		if s.suspended {
			continue
		}
		e.active = append(e.active, s.regs...)
	}
	for i, r := range e.active {
		r.id = "q" + strconv.Itoa(i)
	}
	clear(e.last)
	e.gen++
}
