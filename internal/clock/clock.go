// Package clock provides the time source used by the save timers.
//
// Production code runs on the wall clock from k8s.io/utils/clock; tests
// substitute clocktest.FakeClock so debounce and throttle windows can be
// advanced deterministically.
package clock

import (
	"time"

	k8sclock "k8s.io/utils/clock"
)

// Timer is a scheduled callback that can be stopped or re-armed.
type Timer = k8sclock.Timer

// Clock is the subset of k8s.io/utils/clock.WithDelayedExecution the timers need
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the wall clock
func Real() Clock {
	return k8sclock.RealClock{}
}

// Since returns the time elapsed on c since t
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
