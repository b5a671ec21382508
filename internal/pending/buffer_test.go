package pending

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_Update(t *testing.T) {
	t.Parallel()

	b := NewBuffer("doc-1")
	assert.Equal(t, "doc-1", b.DocumentID())

	payload, dirty := b.Peek()
	assert.Empty(t, payload)
	assert.False(t, dirty)

	b.Update("A")
	b.Update("B")

	payload, dirty = b.Peek()
	assert.Equal(t, "B", payload)
	assert.True(t, dirty)

	// peek does not consume
	payload, dirty = b.Peek()
	assert.Equal(t, "B", payload)
	assert.True(t, dirty)
}

func TestBuffer_MarkClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		updates   []string
		confirmed string
		wantClean bool
	}{
		{
			name:      "confirming the held payload cleans",
			updates:   []string{"A"},
			confirmed: "A",
			wantClean: true,
		},
		{
			name:      "stale confirmation keeps dirty",
			updates:   []string{"A", "B"},
			confirmed: "A",
			wantClean: false,
		},
		{
			name:      "empty payload can be confirmed",
			updates:   []string{"A", ""},
			confirmed: "",
			wantClean: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := NewBuffer("doc")
			for _, u := range tt.updates {
				b.Update(u)
			}

			assert.Equal(t, tt.wantClean, b.MarkClean(tt.confirmed))
			assert.Equal(t, !tt.wantClean, b.Dirty())
		})
	}
}

func TestBuffer_Pending(t *testing.T) {
	t.Parallel()

	b := NewBuffer("doc")
	_, ok := b.Pending()
	assert.False(t, ok)

	b.Update("A")
	payload, ok := b.Pending()
	assert.True(t, ok)
	assert.Equal(t, "A", payload)

	b.MarkClean("A")
	_, ok = b.Pending()
	assert.False(t, ok)

	// a written payload stays visible to Peek
	payload, dirty := b.Peek()
	assert.Equal(t, "A", payload)
	assert.False(t, dirty)
}

func TestBuffer_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	b := NewBuffer("doc")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Update("x")
		}()
	}
	wg.Wait()

	payload, dirty := b.Peek()
	assert.Equal(t, "x", payload)
	assert.True(t, dirty)
}
