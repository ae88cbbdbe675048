package tracker

import (
	"sync"
	"time"
)

// DefaultTickInterval is the production tick rate of the elapsed counter.
const DefaultTickInterval = time.Second

// Counter accumulates elapsed seconds while active, driven by a periodic
// tick. It owns no business logic; the controller reads and resets it.
// All methods are safe for concurrent use.
type Counter struct {
	mu       sync.Mutex
	running  bool
	seconds  int
	interval time.Duration
	onTick   func(seconds int)
	stopCh   chan struct{}
}

// NewCounter creates a counter ticking at the given interval. onTick is
// invoked after each increment with the new value; it runs outside the
// counter's lock and may be nil.
func NewCounter(interval time.Duration, onTick func(int)) *Counter {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Counter{
		interval: interval,
		onTick:   onTick,
	}
}

// Start begins ticking. Calling Start on a running counter is a no-op.
func (c *Counter) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	go c.loop(c.stopCh)
}

// Stop halts ticking. The accumulated value is preserved.
func (c *Counter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
	c.stopCh = nil
}

// Reset sets the accumulated value to 0. Legal in any state.
func (c *Counter) Reset() {
	c.mu.Lock()
	c.seconds = 0
	c.mu.Unlock()
}

// Deduct subtracts n seconds, clamping at zero. Used when an interval
// that is still on the clock gets persisted: only its own seconds come
// off, so ticks accumulated since keep counting.
func (c *Counter) Deduct(n int) {
	c.mu.Lock()
	c.seconds -= n
	if c.seconds < 0 {
		c.seconds = 0
	}
	c.mu.Unlock()
}

// Value returns the current accumulated seconds, always >= 0.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seconds
}

// Running reports whether the counter is ticking.
func (c *Counter) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Counter) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return

		case <-ticker.C:
			c.mu.Lock()
			if !c.running {
				c.mu.Unlock()
				return
			}
			c.seconds++
			v := c.seconds
			cb := c.onTick
			c.mu.Unlock()

			if cb != nil {
				cb(v)
			}
		}
	}
}

// setValue overwrites the accumulated seconds. Useful for tests that need
// a deterministic elapsed value without waiting for real ticks.
func (c *Counter) setValue(n int) {
	c.mu.Lock()
	c.seconds = n
	c.mu.Unlock()
}
