package keymap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Chord
		wantErr bool
	}{
		{in: "ctrl+s", want: "ctrl+s"},
		{in: "Ctrl+S", want: "ctrl+s"},
		{in: "cmd+s", want: "meta+s"},
		{in: "shift+meta+s", want: "shift+meta+s"},
		{in: "meta+shift+control+s", want: "ctrl+shift+meta+s"},
		{in: " option + x ", want: "alt+x"},
		{in: "ctrl", wantErr: true},
		{in: "ctrl+s+x", wantErr: true},
		{in: "ctrl++s", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseChord(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_LatestRegistrationWins(t *testing.T) {
	t.Parallel()

	m := NewManager()
	var calls []string
	handler := func(name string) Handler {
		return func(context.Context) { calls = append(calls, name) }
	}

	unregisterA, err := m.Register("view-a", handler("a"), SaveChords...)
	require.NoError(t, err)
	unregisterB, err := m.Register("view-b", handler("b"), SaveChords...)
	require.NoError(t, err)

	ok, err := m.Dispatch(context.Background(), "ctrl+s")
	require.NoError(t, err)
	assert.True(t, ok)
	owner, _ := m.Owner("meta+s")
	assert.Equal(t, "view-b", owner)

	unregisterB()
	unregisterB()
	ok, err = m.Dispatch(context.Background(), "cmd+s")
	require.NoError(t, err)
	assert.True(t, ok)

	unregisterA()
	ok, err = m.Dispatch(context.Background(), "ctrl+s")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"b", "a"}, calls)
}

func TestManager_UnregisterMiddleOfStack(t *testing.T) {
	t.Parallel()

	m := NewManager()
	var last string
	reg := func(name string) func() {
		unregister, err := m.Register(name, func(context.Context) { last = name }, "ctrl+s")
		require.NoError(t, err)
		return unregister
	}

	reg("a")
	unregisterB := reg("b")
	reg("c")

	unregisterB()
	_, err := m.Dispatch(context.Background(), "ctrl+s")
	require.NoError(t, err)
	assert.Equal(t, "c", last)
}

func TestManager_RegisterErrors(t *testing.T) {
	t.Parallel()

	m := NewManager()
	_, err := m.Register("x", nil, "ctrl+s")
	require.Error(t, err)

	_, err = m.Register("x", func(context.Context) {}, "ctrl")
	require.ErrorIs(t, err, ErrInvalidChord)

	_, err = m.Dispatch(context.Background(), "+")
	require.ErrorIs(t, err, ErrInvalidChord)
}
