package clocktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AdvanceRunsDueCallbacksInOrder(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(epoch)
	var order []string
	var at []time.Duration

	record := func(name string) func() {
		return func() {
			order = append(order, name)
			at = append(at, c.Now().Sub(epoch))
		}
	}

	c.AfterFunc(300*time.Millisecond, record("c"))
	c.AfterFunc(100*time.Millisecond, record("a"))
	c.AfterFunc(200*time.Millisecond, record("b"))
	c.AfterFunc(time.Second, record("late"))

	c.Advance(500 * time.Millisecond)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, at)
	assert.Equal(t, epoch.Add(500*time.Millisecond), c.Now())
	assert.Equal(t, 1, c.Waiters())
}

func TestFakeClock_StopAndReset(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(epoch)
	fired := 0
	timer := c.AfterFunc(time.Second, func() { fired++ })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(2 * time.Second)
	assert.Equal(t, 0, fired)

	assert.False(t, timer.Reset(time.Second))
	c.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, fired)
	c.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)
	assert.False(t, c.HasWaiters())
}

func TestFakeClock_CallbackMayArmTimers(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(epoch)
	var ticks []time.Duration
	var tick func()
	tick = func() {
		ticks = append(ticks, c.Now().Sub(epoch))
		if len(ticks) < 3 {
			c.AfterFunc(100*time.Millisecond, tick)
		}
	}
	c.AfterFunc(100*time.Millisecond, tick)

	c.Advance(time.Second)

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, ticks)
}

func TestFakeClock_SetTime(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(epoch)
	fired := false
	c.AfterFunc(time.Minute, func() { fired = true })

	c.SetTime(epoch.Add(time.Hour))
	assert.True(t, fired)
	assert.Equal(t, epoch.Add(time.Hour), c.Now())
}
