package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/inventorygraph/checkpoint"
)

func TestSqliteStore(t *testing.T) {
	store, err := New(Options{Path: filepath.Join(t.TempDir(), "checkpoints.db")})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	cp := checkpoint.New("run-1", "files")
	cp.Phase = "extracting"
	cp.RecordFailure("b.py", errors.New("llm timeout"))

	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, 1, loaded.Attempts("b.py"))

	// Upsert replaces the row for the same source.
	cp.Phase = "completed"
	cp.Completed = true
	require.NoError(t, store.Save(ctx, cp))

	loaded, err = store.Load(ctx, "files")
	require.NoError(t, err)
	assert.True(t, loaded.Completed)

	require.NoError(t, store.Delete(ctx, "files"))
	_, err = store.Load(ctx, "files")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}
