package store

import (
	"context"
	"time"

	"github.com/sells-group/xref-cli/internal/model"
)

// CheckpointSummary describes one persisted row collection.
type CheckpointSummary struct {
	ListID        string    `json:"list_id"`
	RowCount      int       `json:"row_count"`
	ResolvedCount int       `json:"resolved_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store persists validation row collections keyed by parts-list id. Writes
// replace the full collection; the orchestrator checkpoints incrementally
// and on session end, and reads once at batch start to decide whether to
// resume.
type Store interface {
	SaveRows(ctx context.Context, listID string, rows []model.PartsListRow) error
	// LoadRows returns nil (no error) when the list has no checkpoint.
	LoadRows(ctx context.Context, listID string) ([]model.PartsListRow, error)
	ListCheckpoints(ctx context.Context, limit int) ([]CheckpointSummary, error)
	DeleteCheckpoint(ctx context.Context, listID string) error

	Migrate(ctx context.Context) error
	Close() error
}

// countResolved returns how many rows reached a terminal resolved state.
func countResolved(rows []model.PartsListRow) int {
	n := 0
	for i := range rows {
		if rows[i].Status == model.RowResolved {
			n++
		}
	}
	return n
}
