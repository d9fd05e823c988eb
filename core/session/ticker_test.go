package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskGroupRunsAndStops(t *testing.T) {
	g := newTaskGroup()
	var calls atomic.Int64
	g.Go(5*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})

	deadline := time.After(time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("task never fired")
		case <-time.After(time.Millisecond):
		}
	}

	g.Stop()
	g.wait()
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Fatal("task fired after stop")
	}
}

func TestTaskGroupStopFromCallback(t *testing.T) {
	g := newTaskGroup()
	done := make(chan struct{})
	var once atomic.Bool
	g.Go(time.Millisecond, func(context.Context) {
		if once.CompareAndSwap(false, true) {
			g.Stop()
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
	g.wait()
}

func TestTaskGroupGoAfterStop(t *testing.T) {
	g := newTaskGroup()
	g.Stop()
	var calls atomic.Int64
	g.Go(time.Millisecond, func(context.Context) { calls.Add(1) })
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("task scheduled after stop")
	}
}
