// Package detach runs fire-and-forget side effects whose errors must never
// reach the caller. Failures and panics are logged; Wait lets shutdown code
// block until every detached task has finished.
package detach

import (
	"context"
	"log/slog"
	"sync"
)

// Group tracks in-flight detached tasks. The zero value is ready to use.
//
// Unlike sync.WaitGroup, Go may be called while another goroutine is blocked in
// Wait, including from inside a running task.
type Group struct {
	mu       sync.Mutex
	cond     *sync.Cond
	inflight int
	onError  func(op string, err error)
}

// NewGroup returns a Group that additionally reports task failures to onError.
// onError may be nil.
func NewGroup(onError func(op string, err error)) *Group {
	return &Group{onError: onError}
}

func (g *Group) init() {
	if g.cond == nil {
		g.cond = sync.NewCond(&g.mu)
	}
}

// Go runs fn on its own goroutine and returns immediately. ctx is detached from
// the caller's cancellation but keeps its values.
func (g *Group) Go(ctx context.Context, op string, fn func(context.Context) error) {
	g.mu.Lock()
	g.init()
	g.inflight++
	g.mu.Unlock()

	dctx := context.WithoutCancel(ctx)
	go func() {
		defer g.done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Detached task panicked", "op", op, "panic", r)
				g.report(op, nil)
			}
		}()

		if err := fn(dctx); err != nil {
			slog.Warn("Detached task failed", "op", op, "error", err)
			g.report(op, err)
		}
	}()
}

func (g *Group) report(op string, err error) {
	if g.onError != nil {
		g.onError(op, err)
	}
}

func (g *Group) done() {
	g.mu.Lock()
	g.inflight--
	if g.inflight == 0 {
		g.cond.Broadcast()
	}
	g.mu.Unlock()
}

// Wait blocks until no task is in flight.
func (g *Group) Wait() {
	g.mu.Lock()
	g.init()
	for g.inflight > 0 {
		g.cond.Wait()
	}
	g.mu.Unlock()
}

// Inflight reports the number of running tasks.
func (g *Group) Inflight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight
}
