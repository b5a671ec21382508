// Package clocktest provides a virtual clock for deterministic timer tests.
package clocktest

import (
	"sync"
	"time"

	"github.com/grain-editor/grain-shell/internal/clock"
)

// FakeClock is a manually advanced clock.
//
// Callbacks registered with AfterFunc run synchronously on the goroutine
// calling Advance, in deadline order, and never while the clock's own lock is
// held. A callback may therefore arm or stop timers on the same clock; any
// timer it arms that falls due inside the current Advance window also runs.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	waiters []*fakeTimer
}

var _ clock.Clock = (*FakeClock)(nil)

// NewFakeClock returns a FakeClock set to t
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the virtual time
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules fn to run once the virtual time has advanced by d
func (f *FakeClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTimer{clock: f, fn: fn}
	f.armLocked(t, d)
	return t
}

// Advance moves the virtual time forward by d, running every callback that
// falls due on the way.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.nextDueLocked(target)
		if next == nil {
			// a nested Advance from a callback may already be past target
			if target.After(f.now) {
				f.now = target
			}
			f.mu.Unlock()
			return
		}
		if next.at.After(f.now) {
			f.now = next.at
		}
		f.removeLocked(next)
		fn := next.fn
		f.mu.Unlock()

		fn()
	}
}

// SetTime advances the clock to t. Moving backwards is not supported.
func (f *FakeClock) SetTime(t time.Time) {
	f.Advance(t.Sub(f.Now()))
}

// HasWaiters reports whether any timer is still armed
func (f *FakeClock) HasWaiters() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters) > 0
}

// Waiters returns the number of armed timers
func (f *FakeClock) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

func (f *FakeClock) armLocked(t *fakeTimer, d time.Duration) {
	f.seq++
	t.seq = f.seq
	t.at = f.now.Add(d)
	f.waiters = append(f.waiters, t)
}

// nextDueLocked returns the earliest armed timer due at or before target.
// Ties break on arming order.
func (f *FakeClock) nextDueLocked(target time.Time) *fakeTimer {
	var next *fakeTimer
	for _, w := range f.waiters {
		if w.at.After(target) {
			continue
		}
		if next == nil || w.at.Before(next.at) || (w.at.Equal(next.at) && w.seq < next.seq) {
			next = w
		}
	}
	return next
}

func (f *FakeClock) removeLocked(t *fakeTimer) bool {
	for i, w := range f.waiters {
		if w == t {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock *FakeClock
	fn    func()
	at    time.Time
	seq   uint64
}

// C is unused by AfterFunc timers
func (*fakeTimer) C() <-chan time.Time {
	return nil
}

// Stop disarms the timer and reports whether it was still armed
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.removeLocked(t)
}

// Reset re-arms the timer to fire after d and reports whether it was armed
func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := t.clock.removeLocked(t)
	t.clock.armLocked(t, d)
	return active
}
