// Package orchestrator drives bulk part-list validation: it feeds row
// batches to the catalog's streaming validation endpoint, folds the NDJSON
// result stream back into the row collection, checkpoints incrementally and
// broadcasts progress snapshots to observers independent of their lifecycle.
package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/xref-cli/internal/model"
)

// SessionState is the lifecycle state of one validation session.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateRunning   SessionState = "running"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
	StateCancelled SessionState = "cancelled"
)

// RowResult is one record of the catalog's newline-delimited result stream.
type RowResult struct {
	RowIndex             int                        `json:"rowIndex"`
	Status               model.RowStatus            `json:"status"`
	ResolvedPart         *model.PartAttributes      `json:"resolvedPart,omitempty"`
	SourceAttributes     *model.PartAttributes      `json:"sourceAttributes,omitempty"`
	SuggestedReplacement *model.XrefRecommendation  `json:"suggestedReplacement,omitempty"`
	AllRecommendations   []model.XrefRecommendation `json:"allRecommendations,omitempty"`
	ErrorMessage         string                     `json:"errorMessage,omitempty"`
}

// Snapshot is the immutable view handed to observers after each applied
// record. Rows is a copy; observers must not mutate it.
type Snapshot struct {
	SessionID string               `json:"sessionId"`
	ListID    string               `json:"listId"`
	State     SessionState         `json:"state"`
	Rows      []model.PartsListRow `json:"rows"`
	Progress  float64              `json:"progress"`
	Done      bool                 `json:"done"`
	Err       string               `json:"error,omitempty"`
}

// Observer receives snapshots. Notification is synchronous and FIFO with
// respect to record application.
type Observer func(Snapshot)

// Session consumes one validation stream. The consumption loop is the only
// writer of the row collection; everyone else sees copies.
type Session struct {
	ID     string
	ListID string

	mu           sync.Mutex
	state        SessionState
	rows         []model.PartsListRow
	byIndex      map[int]int // rowIndex -> position in rows
	total        int         // rows submitted for validation
	processed    int
	errMsg       string
	observers    map[int]Observer
	nextObserver int

	cancel      context.CancelFunc
	done        chan struct{}
	checkpoints *checkpointQueue
}

func newSession(id, listID string, rows []model.PartsListRow, total int, cancel context.CancelFunc, cq *checkpointQueue) *Session {
	byIndex := make(map[int]int, len(rows))
	for i := range rows {
		byIndex[rows[i].RowIndex] = i
	}
	return &Session{
		ID:          id,
		ListID:      listID,
		state:       StateIdle,
		rows:        rows,
		byIndex:     byIndex,
		total:       total,
		observers:   make(map[int]Observer),
		cancel:      cancel,
		done:        make(chan struct{}),
		checkpoints: cq,
	}
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current immutable view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	done := s.state == StateCompleted || s.state == StateFailed || s.state == StateCancelled
	progress := 0.0
	if s.total > 0 {
		progress = float64(s.processed) / float64(s.total)
	}
	return Snapshot{
		SessionID: s.ID,
		ListID:    s.ListID,
		State:     s.state,
		Rows:      model.CloneRows(s.rows),
		Progress:  progress,
		Done:      done,
		Err:       s.errMsg,
	}
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// run is the single consumption loop. It decodes newline-delimited records
// sequentially as they arrive; a missing trailing newline on the final
// chunk is handled by bufio's line buffering.
func (s *Session) run(ctx context.Context, stream io.ReadCloser) {
	defer stream.Close()

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	log := zap.L().With(zap.String("session_id", s.ID), zap.String("list_id", s.ListID))

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec RowResult
		if err := json.Unmarshal(line, &rec); err != nil {
			// A malformed record is skipped; the row keeps its prior state
			// and the session keeps reading.
			log.Warn("orchestrator: skipping malformed stream record", zap.Error(err))
			continue
		}
		s.apply(&rec, log)
	}

	streamErr := scanner.Err()
	cancelled := ctx.Err() != nil

	s.mu.Lock()
	switch {
	case cancelled:
		s.state = StateCancelled
		s.errMsg = "session cancelled"
	case streamErr != nil:
		s.state = StateFailed
		s.errMsg = streamErr.Error()
	default:
		s.state = StateCompleted
	}
	final := s.snapshotLocked()
	s.mu.Unlock()

	// Partial results are always persisted, whatever ended the stream.
	s.checkpoints.enqueue(s.ListID, final.Rows)
	s.notify(final)
	close(s.done)

	log.Info("orchestrator: session finished",
		zap.String("state", string(final.State)),
		zap.Int("processed", s.processed),
		zap.Int("total", s.total),
		zap.String("error", final.Err),
	)
}

// apply merges one result record into the row collection, notifies
// observers and checkpoints every 5th applied record.
func (s *Session) apply(rec *RowResult, log *zap.Logger) {
	s.mu.Lock()

	pos, ok := s.byIndex[rec.RowIndex]
	if !ok {
		s.mu.Unlock()
		log.Warn("orchestrator: record for unknown row index", zap.Int("row_index", rec.RowIndex))
		return
	}

	row := &s.rows[pos]
	row.Status = rec.Status
	row.ResolvedPart = rec.ResolvedPart
	row.SourceAttributes = rec.SourceAttributes
	row.SuggestedReplacement = rec.SuggestedReplacement
	row.AllRecommendations = rec.AllRecommendations
	row.ErrorMessage = rec.ErrorMessage

	s.processed++
	checkpoint := s.processed%checkpointEveryNRecords == 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if checkpoint {
		s.checkpoints.enqueue(s.ListID, snap.Rows)
	}
	s.notify(snap)
}

// notify delivers a snapshot to every current observer, synchronously and
// in stable order.
func (s *Session) notify(snap Snapshot) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	obs := make([]Observer, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	s.mu.Unlock()

	for _, o := range obs {
		o(snap)
	}
}

// subscribe registers an observer and immediately delivers the current
// snapshot so late subscribers see all records applied so far.
func (s *Session) subscribe(o Observer) int {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = o
	snap := s.snapshotLocked()
	s.mu.Unlock()

	o(snap)
	return id
}

// unsubscribe removes an observer. The underlying validation keeps running;
// observer lifecycle never affects the stream.
func (s *Session) unsubscribe(id int) {
	s.mu.Lock()
	delete(s.observers, id)
	s.mu.Unlock()
}
