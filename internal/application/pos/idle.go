package pos

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultIdleAfter is how long without cart activity before the terminal
// reports idle
const DefaultIdleAfter = 2 * time.Minute

// IdleWatcher flips to idle after a period without activity. Touch resets
// it; Stop releases the timer.
type IdleWatcher struct {
	after  time.Duration
	idle   atomic.Bool
	onIdle func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewIdleWatcher starts watching; onIdle, if set, runs once per idle spell
func NewIdleWatcher(after time.Duration, onIdle func()) *IdleWatcher {
	if after <= 0 {
		after = DefaultIdleAfter
	}
	w := &IdleWatcher{after: after, onIdle: onIdle}
	w.timer = time.AfterFunc(after, w.fire)
	return w
}

func (w *IdleWatcher) fire() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped || w.idle.Swap(true) {
		return
	}
	if w.onIdle != nil {
		w.onIdle()
	}
}

// Touch records activity
func (w *IdleWatcher) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.idle.Store(false)
	w.timer.Reset(w.after)
}

// IsIdle reports whether the terminal has been idle for the full period
func (w *IdleWatcher) IsIdle() bool {
	return w.idle.Load()
}

// Stop disposes the timer; the watcher stays in its current state
func (w *IdleWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}
