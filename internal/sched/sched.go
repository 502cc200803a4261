// Package sched wraps one-shot and repeating timers in a cancellable task so
// pause/resume and shutdown are single Cancel calls instead of flag checks.
package sched

import (
	"sync"
	"time"
)

// Task is a scheduled callback that can be cancelled exactly once.
type Task struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// After runs fn once after d unless cancelled first.
func After(d time.Duration, fn func()) *Task {
	t := &Task{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			fn()
		case <-t.stop:
		}
	}()
	return t
}

// Every runs fn on every tick of d until cancelled.
func Every(d time.Duration, fn func()) *Task {
	t := &Task{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// Cancel stops the task and waits for any in-flight callback to return.
// Safe to call more than once. Must not be called from inside fn.
func (t *Task) Cancel() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
