package session

import (
	"context"
	"sync"
	"time"
)

// taskGroup owns a set of periodic tasks whose lifetime is bound to a session
// or charging run. Stop cancels every task synchronously; a task already
// inside its callback finishes that callback, which is why every callback
// re-checks coordinator state under the lock before mutating anything.
type taskGroup struct {
	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

func newTaskGroup() *taskGroup { return &taskGroup{} }

// Go runs fn every interval until the group is stopped.
func (g *taskGroup) Go(interval time.Duration, fn func(context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		cancel()
		return
	}
	g.cancels = append(g.cancels, cancel)
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn(ctx)
			}
		}
	}()
}

// Stop cancels all tasks. It does not wait for in-flight callbacks, so it is
// safe to call from within a task callback.
func (g *taskGroup) Stop() {
	g.mu.Lock()
	g.stopped = true
	for _, cancel := range g.cancels {
		cancel()
	}
	g.cancels = nil
	g.mu.Unlock()
}

// wait blocks until all task goroutines have exited.
func (g *taskGroup) wait() { g.wg.Wait() }
