package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	k8sclock "k8s.io/utils/clock"
)

var _ Clock = k8sclock.RealClock{}

func TestReal_AfterFunc(t *testing.T) {
	t.Parallel()

	c := Real()
	var wg sync.WaitGroup
	wg.Add(1)
	fired := make(chan time.Time, 1)

	start := c.Now()
	c.AfterFunc(5*time.Millisecond, func() {
		defer wg.Done()
		fired <- c.Now()
	})
	wg.Wait()

	at := <-fired
	assert.False(t, at.Before(start.Add(5*time.Millisecond)))
}

func TestReal_StopPreventsCallback(t *testing.T) {
	t.Parallel()

	c := Real()
	called := make(chan struct{}, 1)
	timer := c.AfterFunc(time.Hour, func() { called <- struct{}{} })

	require.True(t, timer.Stop())
	select {
	case <-called:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestSince(t *testing.T) {
	t.Parallel()

	c := Real()
	start := c.Now().Add(-time.Second)
	assert.GreaterOrEqual(t, Since(c, start), time.Second)
}
