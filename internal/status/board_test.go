package status_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/grain-editor/grain-shell/internal/status"
	"github.com/grain-editor/grain-shell/internal/status/mocks"
)

func TestBoard_TracksLatestStatus(t *testing.T) {
	t.Parallel()

	b := status.NewBoard()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	b.Notify(status.Unsaved("doc", t0))
	b.Notify(status.Saving("doc", t0.Add(time.Second)))
	b.Notify(status.Failed("doc", t0.Add(2*time.Second), "disk full"))

	st, ok := b.Get("doc")
	require.True(t, ok)
	assert.Equal(t, status.KindError, st.Kind)
	assert.Equal(t, "disk full", st.Reason)
	assert.Equal(t, 1, st.FailureCount)
	assert.Nil(t, st.LastSavedAt)

	b.Notify(status.Saving("doc", t0.Add(3*time.Second)))
	b.Notify(status.Saved("doc", t0.Add(4*time.Second)))

	st, _ = b.Get("doc")
	assert.Equal(t, status.KindSaved, st.Kind)
	assert.Empty(t, st.Reason)
	assert.Zero(t, st.FailureCount)
	require.NotNil(t, st.LastSavedAt)
	assert.Equal(t, t0.Add(4*time.Second), *st.LastSavedAt)

	_, ok = b.Get("other")
	assert.False(t, ok)
	assert.Len(t, b.Snapshot(), 1)
}

func TestBoard_Subscribe(t *testing.T) {
	t.Parallel()

	b := status.NewBoard()
	events, cancel := b.Subscribe("doc")

	b.Notify(status.Saving("doc", time.Now()))
	b.Notify(status.Saving("other", time.Now()))

	ev := <-events
	assert.Equal(t, status.KindSaving, ev.Kind)
	assert.Equal(t, "doc", ev.DocumentID)

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestBoard_ForgetClosesSubscriptions(t *testing.T) {
	t.Parallel()

	b := status.NewBoard()
	events, cancel := b.Subscribe("doc")
	b.Notify(status.Saved("doc", time.Now()))
	b.Forget("doc")

	<-events
	_, open := <-events
	assert.False(t, open)
	_, ok := b.Get("doc")
	assert.False(t, ok)

	// cancelling after forget is safe
	cancel()
}

func TestBoard_PersistAndRestore(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := mocks.NewMockPersistence(ctrl)

	b := status.NewBoard()
	b.Notify(status.Failed("doc", time.Now(), "boom"))

	p.EXPECT().SaveStatus(gomock.Any(), "doc", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, st *status.DocumentStatus) error {
			assert.Equal(t, status.KindError, st.Kind)
			return nil
		})
	require.NoError(t, b.Persist(context.Background(), p))

	p.EXPECT().LoadAllStatus(gomock.Any()).Return(map[string]*status.DocumentStatus{
		"doc":   {Kind: status.KindSaved},
		"older": {Kind: status.KindError, Reason: "previous session"},
	}, nil)
	require.NoError(t, b.Restore(context.Background(), p))

	st, _ := b.Get("doc")
	assert.Equal(t, status.KindError, st.Kind, "live status wins over restored one")
	st, ok := b.Get("older")
	require.True(t, ok)
	assert.Equal(t, "previous session", st.Reason)
}

func TestBoard_PersistError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := mocks.NewMockPersistence(ctrl)

	b := status.NewBoard()
	b.Notify(status.Saved("doc", time.Now()))
	p.EXPECT().SaveStatus(gomock.Any(), "doc", gomock.Any()).Return(errors.New("read-only"))

	err := b.Persist(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}
