package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointFailureTracking(t *testing.T) {
	cp := New("run-1", "files")
	assert.Equal(t, "pending", cp.Phase)

	cp.RecordFailure("a.py", errors.New("boom"))
	assert.Equal(t, 1, cp.Attempts("a.py"))

	cp.RecordFailure("a.py", errors.New("boom again"))
	assert.Equal(t, 2, cp.Attempts("a.py"))
	assert.Equal(t, "boom again", cp.FailedFiles[0].Error)

	// A later success clears the failure record.
	cp.MarkProcessed("a.py")
	assert.Zero(t, cp.Attempts("a.py"))
	assert.True(t, cp.IsProcessed("a.py"))
	assert.Equal(t, 1, cp.DocumentsProcessed)

	// Marking twice does not double count.
	cp.MarkProcessed("a.py")
	assert.Equal(t, 1, cp.DocumentsProcessed)
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()

	cp := New("run-1", "files")
	cp.Phase = "extracting"
	cp.MarkProcessed("a.py")
	cp.RecordFailure("b.py", errors.New("llm timeout"))
	cp.EntitiesAdded = 7

	require.NoError(t, store.Save(ctx, cp))

	// The file lands under the expected name.
	_, err = os.Stat(filepath.Join(dir, ".ingestion-checkpoint-files.json"))
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "extracting", loaded.Phase)
	assert.Equal(t, 7, loaded.EntitiesAdded)
	assert.True(t, loaded.IsProcessed("a.py"))
	assert.Equal(t, 1, loaded.Attempts("b.py"))
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestFileStoreNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, New("run-1", "files")))
	require.NoError(t, store.Delete(ctx, "files"))

	_, err = store.Load(ctx, "files")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete(ctx, "files"))
}

func TestFileStoreSanitizesSourceNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	path := store.Path("repo/branch name")
	assert.Equal(t, ".ingestion-checkpoint-repo_branch_name.json", filepath.Base(path))
}
