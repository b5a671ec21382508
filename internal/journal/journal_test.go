package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grain-editor/grain-shell/internal/save"
)

var _ save.Journal = (*Journal)(nil)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }
	return j
}

func TestJournal_RecordAndRead(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()

	entries, err := j.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, j.RecordFailedFlush(ctx, "doc-1", "first", errors.New("disk full")))
	require.NoError(t, j.RecordFailedFlush(ctx, "doc-2", "second", nil))

	entries, err = j.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "doc-1", entries[0].DocumentID)
	assert.Equal(t, "first", entries[0].Payload)
	assert.Equal(t, "disk full", entries[0].Reason)
	assert.NotEmpty(t, entries[0].ID)
	assert.True(t, entries[0].RecordedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	assert.Equal(t, j.version, entries[0].AppVersion)

	assert.Equal(t, "doc-2", entries[1].DocumentID)
	assert.Empty(t, entries[1].Reason)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)

	info, err := os.Stat(j.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestJournal_Replay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		failFor      map[string]bool
		wantReplayed int
		wantLeft     []string
	}{
		{
			name:         "all entries applied",
			wantReplayed: 3,
		},
		{
			name:         "failed entries are kept",
			failFor:      map[string]bool{"b": true},
			wantReplayed: 2,
			wantLeft:     []string{"b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j := openTestJournal(t)
			ctx := context.Background()
			for _, doc := range []string{"a", "b", "c"} {
				require.NoError(t, j.RecordFailedFlush(ctx, doc, "payload-"+doc, nil))
			}

			var applied []string
			n, err := j.Replay(ctx, func(_ context.Context, e Entry) error {
				if tt.failFor[e.DocumentID] {
					return errors.New("store unavailable")
				}
				applied = append(applied, e.DocumentID)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantReplayed, n)
			assert.Len(t, applied, tt.wantReplayed)

			left, err := j.Entries(ctx)
			require.NoError(t, err)
			var leftDocs []string
			for _, e := range left {
				leftDocs = append(leftDocs, e.DocumentID)
			}
			assert.Equal(t, tt.wantLeft, leftDocs)

			if len(tt.wantLeft) == 0 {
				_, err := os.Stat(j.Path())
				assert.True(t, os.IsNotExist(err), "empty journal is removed")
			}
		})
	}
}

func TestJournal_Remove(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.RecordFailedFlush(ctx, "a", "1", nil))
	require.NoError(t, j.RecordFailedFlush(ctx, "b", "2", nil))

	entries, err := j.Entries(ctx)
	require.NoError(t, err)
	require.NoError(t, j.Remove(ctx, entries[0].ID))

	entries, err = j.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].DocumentID)
}

func TestJournal_TruncatedTailIsIgnored(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.RecordFailedFlush(ctx, "a", "kept", nil))

	f, err := os.OpenFile(j.Path(), os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	// start of a map header with missing content
	_, err = f.Write([]byte{0xa5, 0x01})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := j.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Payload)
}

func TestJournal_CanceledContext(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)

	// hold the lock from a second handle so the first has to wait
	other, err := Open(filepath.Dir(j.Path()))
	require.NoError(t, err)
	require.NoError(t, other.lock.Lock())
	t.Cleanup(func() { _ = other.lock.Unlock() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = j.Append(ctx, Entry{ID: "x", DocumentID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock")
}

func TestJournal_ReplaysEntriesFromNewerRelease(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	j.version = "v0.4.0"
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, Entry{
		ID:         "from-future",
		DocumentID: "notes",
		Payload:    "kept",
		RecordedAt: time.Now().UTC(),
		AppVersion: "v0.9.0",
	}))

	var applied []string
	n, err := j.Replay(ctx, func(_ context.Context, e Entry) error {
		applied = append(applied, e.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"from-future"}, applied)
}
