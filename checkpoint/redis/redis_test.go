package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/inventorygraph/checkpoint"
)

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store := New(Options{Addr: mr.Addr()})
	defer store.Close()

	ctx := context.Background()

	cp := checkpoint.New("run-1", "files")
	cp.Phase = "extracting"
	cp.MarkProcessed("a.py")
	cp.RecordFailure("b.py", errors.New("llm timeout"))

	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, "files")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "extracting", loaded.Phase)
	assert.True(t, loaded.IsProcessed("a.py"))
	assert.Equal(t, 1, loaded.Attempts("b.py"))

	// Replacing overwrites the prior state.
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
