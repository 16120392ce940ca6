package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/inventorygraph/checkpoint"
)

func TestPostgresStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, "ingestion_checkpoints")

	cp := checkpoint.New("run-1", "files")
	cp.Phase = "extracting"
	data, _ := json.Marshal(cp)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ingestion_checkpoints")).
		WithArgs(cp.Source, cp.RunID, data, cp.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, "ingestion_checkpoints")

	cp := checkpoint.New("run-1", "files")
	cp.Phase = "linking"
	cp.MarkProcessed("a.py")
	data, _ := json.Marshal(cp)

	rows := pgxmock.NewRows([]string{"data"}).AddRow(data)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM ingestion_checkpoints WHERE source = $1")).
		WithArgs("files").
		WillReturnRows(rows)

	loaded, err := store.Load(context.Background(), "files")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "linking", loaded.Phase)
	assert.True(t, loaded.IsProcessed("a.py"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, "ingestion_checkpoints")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM ingestion_checkpoints WHERE source = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, "ingestion_checkpoints")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ingestion_checkpoints WHERE source = $1")).
		WithArgs("files").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Delete(context.Background(), "files"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
