package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/xref-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS list_checkpoints (
	list_id        TEXT PRIMARY KEY,
	rows           TEXT NOT NULL,
	row_count      INTEGER NOT NULL,
	resolved_count INTEGER NOT NULL,
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_list_checkpoints_updated_at ON list_checkpoints(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRows(ctx context.Context, listID string, rows []model.PartsListRow) error {
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rows")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO list_checkpoints (list_id, rows, row_count, resolved_count, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(list_id) DO UPDATE SET
		   rows = excluded.rows,
		   row_count = excluded.row_count,
		   resolved_count = excluded.resolved_count,
		   updated_at = excluded.updated_at`,
		listID, string(rowsJSON), len(rows), countResolved(rows), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save checkpoint %s", listID)
}

func (s *SQLiteStore) LoadRows(ctx context.Context, listID string) ([]model.PartsListRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT rows FROM list_checkpoints WHERE list_id = ?`, listID,
	)

	var rowsJSON string
	err := row.Scan(&rowsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load checkpoint %s", listID)
	}

	var rows []model.PartsListRow
	if err := json.Unmarshal([]byte(rowsJSON), &rows); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal checkpoint %s", listID)
	}
	return rows, nil
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context, limit int) ([]CheckpointSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT list_id, row_count, resolved_count, updated_at
		 FROM list_checkpoints ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list checkpoints")
	}
	defer rows.Close()

	var out []CheckpointSummary
	for rows.Next() {
		var cs CheckpointSummary
		if err := rows.Scan(&cs.ListID, &cs.RowCount, &cs.ResolvedCount, &cs.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan checkpoint")
		}
		out = append(out, cs)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list checkpoints iterate")
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, listID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM list_checkpoints WHERE list_id = ?`, listID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete checkpoint %s", listID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("checkpoint not found: %s", listID)
	}
	return nil
}
