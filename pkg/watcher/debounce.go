package watcher

import (
	"sync"
	"time"
)

// debouncer delays a callback until events stop arriving for the
// configured duration. A new Trigger resets the pending timer.
type debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
}

func newDebouncer(d time.Duration) *debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &debouncer{duration: d}
}

// Trigger schedules fn to run after the debounce window. A pending
// invocation is replaced, never stacked.
func (d *debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel drops any pending invocation.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
