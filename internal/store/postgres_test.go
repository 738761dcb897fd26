package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xref-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SaveRows_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO list_checkpoints`).
		WithArgs("list-1", pgxmock.AnyArg(), 3, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveRows(context.Background(), "list-1", sampleRows())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rowsJSON, err := json.Marshal(sampleRows())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT rows FROM list_checkpoints WHERE list_id = \$1`).
		WithArgs("list-1").
		WillReturnRows(pgxmock.NewRows([]string{"rows"}).AddRow(rowsJSON))

	rows, err := s.LoadRows(context.Background(), "list-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, model.RowResolved, rows[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadRows_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT rows FROM list_checkpoints`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	rows, err := s.LoadRows(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCheckpoints(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT list_id, row_count, resolved_count, updated_at`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{"list_id", "row_count", "resolved_count", "updated_at"}).
			AddRow("list-b", 10, 7, now).
			AddRow("list-a", 3, 1, now.Add(-time.Hour)))

	checkpoints, err := s.ListCheckpoints(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)
	assert.Equal(t, "list-b", checkpoints[0].ListID)
	assert.Equal(t, 10, checkpoints[0].RowCount)
	assert.Equal(t, 7, checkpoints[0].ResolvedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCheckpoint(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM list_checkpoints`).
		WithArgs("list-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteCheckpoint(context.Background(), "list-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCheckpoint_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM list_checkpoints`).
		WithArgs("unknown").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteCheckpoint(context.Background(), "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS list_checkpoints`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
