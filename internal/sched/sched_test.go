package sched

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAfterFiresOnce(t *testing.T) {
	var n atomic.Int32
	task := After(10*time.Millisecond, func() { n.Add(1) })

	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), n.Load())
	task.Cancel() // returns immediately on a finished task
}

func TestAfterCancelledBeforeFiring(t *testing.T) {
	var n atomic.Int32
	task := After(200*time.Millisecond, func() { n.Add(1) })
	task.Cancel()

	time.Sleep(250 * time.Millisecond)
	assert.Zero(t, n.Load())
}

func TestEveryRepeatsUntilCancel(t *testing.T) {
	var n atomic.Int32
	task := Every(10*time.Millisecond, func() { n.Add(1) })

	assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 5*time.Millisecond)
	task.Cancel()

	frozen := n.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, frozen, n.Load(), "no ticks after Cancel returns")
}

func TestCancelIsIdempotent(t *testing.T) {
	task := Every(10*time.Millisecond, func() {})
	task.Cancel()
	assert.NotPanics(t, task.Cancel)
}

// Cancel must not return while a callback is still running.
func TestCancelWaitsForInflightCallback(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool

	task := Every(5*time.Millisecond, func() {
		once.Do(func() { close(entered) })
		<-release
		finished.Store(true)
	})

	<-entered
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	task.Cancel()
	assert.True(t, finished.Load())
}
