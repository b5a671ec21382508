package timer

import (
	"sync"
	"time"

	"github.com/grain-editor/grain-shell/internal/clock"
)

// Throttler runs fn at most once per interval.
//
// The first Trigger of a window runs fn immediately. Triggers inside the
// window are collapsed into a single trailing call that runs when the window
// closes, which in turn opens a new window.
type Throttler struct {
	clock    clock.Clock
	interval time.Duration
	fn       func()

	mu       sync.Mutex
	last     time.Time
	hasLast  bool
	trailing bool
	timer    clock.Timer
	gen      uint64
	stopped  bool
}

// NewThrottler creates a Throttler on the given clock
func NewThrottler(c clock.Clock, interval time.Duration, fn func()) *Throttler {
	return &Throttler{
		clock:    c,
		interval: interval,
		fn:       fn,
	}
}

// Trigger requests a call to fn
func (t *Throttler) Trigger() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	elapsed := now.Sub(t.last)
	if !t.hasLast || elapsed >= t.interval {
		// the leading call covers anything a late trailing timer would have done
		t.disarmLocked()
		t.last = now
		t.hasLast = true
		t.mu.Unlock()

		t.fn()
		return
	}

	t.trailing = true
	if t.timer == nil {
		gen := t.gen
		t.timer = t.clock.AfterFunc(t.interval-elapsed, func() { t.fire(gen) })
	}
	t.mu.Unlock()
}

// Cancel drops the pending trailing call and closes the current window
func (t *Throttler) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
	t.hasLast = false
}

// Stop cancels the throttler and ignores every later Trigger
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
	t.stopped = true
}

// Pending reports whether a trailing call is armed
func (t *Throttler) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trailing
}

func (t *Throttler) disarmLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.trailing = false
}

func (t *Throttler) fire(gen uint64) {
	t.mu.Lock()
	if t.stopped || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	if !t.trailing {
		t.mu.Unlock()
		return
	}
	t.trailing = false
	t.last = t.clock.Now()
	t.hasLast = true
	t.mu.Unlock()

	t.fn()
}
