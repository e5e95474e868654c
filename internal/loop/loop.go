// Package loop provides the single dispatch goroutine that owns all console
// state.
//
// Module loading, page swaps and the polling engine are written as if they ran
// on one thread: every callback, registration and state change is executed by
// [Loop.Run] in FIFO order. Blocking work (network fetches, polls, remote
// commands) runs on its own goroutine via [Spawn], and its completion is posted
// back onto the loop. Because nothing else touches that state, the packages
// built on top of the loop need no locks.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// ErrStopped is returned by [Loop.Call] when the loop no longer accepts work.
var ErrStopped = errors.New("loop stopped")

// Loop is an unbounded FIFO task queue drained by a single goroutine.
//
// Post and Call are safe for concurrent use. Tasks posted before Run starts
// are kept and executed once it does.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	logger  *slog.Logger
}

// New creates a [Loop]. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post enqueues fn for execution on the loop goroutine.
// Returns false if the loop has stopped; fn is then dropped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to return.
//
// Call must not be used from the loop goroutine itself: it would wait on a
// task queued behind the current one.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued tasks until ctx is cancelled. Run blocks.
// Pending tasks are discarded on cancellation and later posts are refused.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			select {
			case <-ctx.Done():
				l.stop()
				return
			case <-l.wake:
				continue
			}
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		if ctx.Err() != nil {
			l.stop()
			return
		}
		l.invokeSafe(fn)
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
}

// invokeSafe runs a task with panic recovery.
// The stack is logged under a correlation ID; the loop keeps running.
func (l *Loop) invokeSafe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop task panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}

// Spawn runs work on a new goroutine and posts done(result, err) back onto
// the loop. If the loop has stopped by then, done is never called.
func Spawn[T any](l *Loop, ctx context.Context, work func(context.Context) (T, error), done func(T, error)) {
	go func() {
		v, err := work(ctx)
		l.Post(func() { done(v, err) })
	}()
}
