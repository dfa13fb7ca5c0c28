// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package runtime provides the single-threaded cooperative event loop the
// client-side state machines run on. Every callback is posted to the loop, so
// state machines sharing one loop never observe concurrent mutation and never
// need locks. Scheduled tasks return cancelable handles; teardown paths
// cancel handles idempotently.
package runtime

import (
	"sync"
	"time"
)

// Loop executes posted functions one at a time on a dedicated goroutine.
type Loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewLoop() *Loop {
	l := &Loop{
		tasks: make(chan func(), 128),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post queues fn for execution on the loop. Posting after Stop is a no-op.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.quit:
	case l.tasks <- fn:
	}
}

// Schedule runs fn on the loop after the delay unless the returned handle is
// canceled first. A zero delay still defers fn to a later loop iteration,
// which is how callers let delegates unwind before triggering the next state
// change.
func (l *Loop) Schedule(delay time.Duration, fn func()) *Handle {
	h := &Handle{}
	h.timer = time.AfterFunc(delay, func() {
		l.Post(func() {
			h.mu.Lock()
			canceled := h.canceled
			h.mu.Unlock()
			if !canceled {
				fn()
			}
		})
	})
	return h
}

// Stop terminates the loop and waits for the current task to finish. Queued
// tasks that have not run yet are dropped. Must not be called from a loop
// task.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.quit) })
	<-l.done
}

// Handle identifies one scheduled task.
type Handle struct {
	mu       sync.Mutex
	timer    *time.Timer
	canceled bool
}

// Cancel prevents the task from running if it has not run yet. Canceling an
// already-fired or already-canceled handle is a no-op.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.canceled = true
	h.mu.Unlock()
	h.timer.Stop()
}
