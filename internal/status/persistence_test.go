package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testDocumentID = "notes/today"

func TestFilePersistence_SaveAndLoad(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()

	persistence := NewFilePersistence(tmpDir)
	require.NotNil(t, persistence)

	now := time.Now().UTC().Truncate(time.Second)
	testStatus := &DocumentStatus{
		Kind:         KindError,
		Reason:       "disk full",
		UpdatedAt:    now,
		LastSavedAt:  &now,
		FailureCount: 2,
	}

	ctx := context.Background()
	err := persistence.SaveStatus(ctx, testDocumentID, testStatus)
	require.NoError(t, err)

	// the slash in the id is escaped, not turned into a subdirectory
	expectedPath := filepath.Join(tmpDir, "notes%2Ftoday", StatusFileName)
	_, err = os.Stat(expectedPath)
	require.NoError(t, err)

	loaded, err := persistence.LoadStatus(ctx, testDocumentID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, testStatus.Kind, loaded.Kind)
	require.Equal(t, testStatus.Reason, loaded.Reason)
	require.Equal(t, testStatus.FailureCount, loaded.FailureCount)
	require.True(t, testStatus.UpdatedAt.Equal(loaded.UpdatedAt))
}

func TestFilePersistence_LoadNonExistent(t *testing.T) {
	t.Parallel()

	persistence := NewFilePersistence(t.TempDir())

	loaded, err := persistence.LoadStatus(context.Background(), testDocumentID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, Kind(""), loaded.Kind)
	require.Empty(t, loaded.Reason)
}

func TestFilePersistence_AtomicWrite(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := NewFilePersistence(tmpDir)

	err := persistence.SaveStatus(context.Background(), "doc", &DocumentStatus{Kind: KindSaved})
	require.NoError(t, err)

	tempPath := filepath.Join(tmpDir, "doc", StatusFileName) + ".tmp"
	_, err = os.Stat(tempPath)
	require.True(t, os.IsNotExist(err), "Temporary file should not exist after save")
}

func TestFilePersistence_LoadAllStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T, dir string, p Persistence)
		baseDir func(dir string) string
		want    map[string]Kind
	}{
		{
			name: "multiple documents",
			setup: func(t *testing.T, _ string, p Persistence) {
				t.Helper()
				ctx := context.Background()
				require.NoError(t, p.SaveStatus(ctx, "a", &DocumentStatus{Kind: KindSaved}))
				require.NoError(t, p.SaveStatus(ctx, "b/c", &DocumentStatus{Kind: KindError, Reason: "boom"}))
			},
			want: map[string]Kind{"a": KindSaved, "b/c": KindError},
		},
		{
			name:  "empty directory",
			setup: func(*testing.T, string, Persistence) {},
			want:  map[string]Kind{},
		},
		{
			name:    "missing directory",
			setup:   func(*testing.T, string, Persistence) {},
			baseDir: func(dir string) string { return filepath.Join(dir, "nonexistent") },
			want:    map[string]Kind{},
		},
		{
			name: "invalid file is skipped",
			setup: func(t *testing.T, dir string, p Persistence) {
				t.Helper()
				require.NoError(t, p.SaveStatus(context.Background(), "good", &DocumentStatus{Kind: KindSaved}))
				invalidDir := filepath.Join(dir, "bad")
				require.NoError(t, os.MkdirAll(invalidDir, 0750))
				require.NoError(t, os.WriteFile(filepath.Join(invalidDir, StatusFileName), []byte("{invalid json}"), 0600))
			},
			want: map[string]Kind{"good": KindSaved},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			if tt.baseDir != nil {
				dir = tt.baseDir(dir)
			}
			p := NewFilePersistence(dir)
			tt.setup(t, dir, p)

			result, err := p.LoadAllStatus(context.Background())
			require.NoError(t, err)
			require.NotNil(t, result)

			got := make(map[string]Kind, len(result))
			for id, st := range result {
				got[id] = st.Kind
			}
			require.Equal(t, tt.want, got)
		})
	}
}
