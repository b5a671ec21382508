// Package timer implements the cancellable debounce and throttle schedulers
// used by the save coordinator.
//
// Both schedulers tag every armed timer with a generation number. Cancel and
// Stop bump the generation, so a callback already racing to run on the real
// clock becomes a no-op instead of firing after it was cancelled.
package timer

import (
	"sync"
	"time"

	"github.com/grain-editor/grain-shell/internal/clock"
)

// Debouncer runs fn once a quiet period of delay has passed since the last Schedule
type Debouncer struct {
	clock clock.Clock
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   clock.Timer
	gen     uint64
	pending bool
	stopped bool
}

// NewDebouncer creates a Debouncer on the given clock
func NewDebouncer(c clock.Clock, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		clock: c,
		delay: delay,
		fn:    fn,
	}
}

// Schedule (re)starts the quiet-period wait
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.disarmLocked()
	d.pending = true
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Cancel drops the pending call without running it
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarmLocked()
}

// FlushNow cancels the pending call and runs fn synchronously in its place.
// It reports whether a call was pending.
func (d *Debouncer) FlushNow() bool {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return false
	}
	d.disarmLocked()
	d.mu.Unlock()

	d.fn()
	return true
}

// Stop cancels the pending call and ignores every later Schedule
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarmLocked()
	d.stopped = true
}

// Pending reports whether a call is armed
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer) disarmLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.pending = false
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
