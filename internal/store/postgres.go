package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/xref-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS list_checkpoints (
	list_id        TEXT PRIMARY KEY,
	rows           JSONB NOT NULL,
	row_count      INTEGER NOT NULL,
	resolved_count INTEGER NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_list_checkpoints_updated_at ON list_checkpoints(updated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRows(ctx context.Context, listID string, rows []model.PartsListRow) error {
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rows")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO list_checkpoints (list_id, rows, row_count, resolved_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (list_id) DO UPDATE SET
		   rows = EXCLUDED.rows,
		   row_count = EXCLUDED.row_count,
		   resolved_count = EXCLUDED.resolved_count,
		   updated_at = EXCLUDED.updated_at`,
		listID, rowsJSON, len(rows), countResolved(rows), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save checkpoint %s", listID)
}

func (s *PostgresStore) LoadRows(ctx context.Context, listID string) ([]model.PartsListRow, error) {
	var rowsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT rows FROM list_checkpoints WHERE list_id = $1`, listID,
	).Scan(&rowsJSON)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load checkpoint %s", listID)
	}

	var rows []model.PartsListRow
	if err := json.Unmarshal(rowsJSON, &rows); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal checkpoint %s", listID)
	}
	return rows, nil
}

func (s *PostgresStore) ListCheckpoints(ctx context.Context, limit int) ([]CheckpointSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT list_id, row_count, resolved_count, updated_at
		 FROM list_checkpoints ORDER BY updated_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list checkpoints")
	}
	defer rows.Close()

	var out []CheckpointSummary
	for rows.Next() {
		var cs CheckpointSummary
		if err := rows.Scan(&cs.ListID, &cs.RowCount, &cs.ResolvedCount, &cs.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan checkpoint")
		}
		out = append(out, cs)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list checkpoints iterate")
}

func (s *PostgresStore) DeleteCheckpoint(ctx context.Context, listID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM list_checkpoints WHERE list_id = $1`, listID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete checkpoint %s", listID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("checkpoint not found: %s", listID)
	}
	return nil
}
