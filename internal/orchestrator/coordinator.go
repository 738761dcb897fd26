package orchestrator

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/xref-cli/internal/model"
	"github.com/sells-group/xref-cli/internal/store"
	"github.com/sells-group/xref-cli/pkg/catalog"
)

// StreamSource opens the catalog's streaming batch-validation call.
type StreamSource interface {
	ValidateBatch(ctx context.Context, reqs []catalog.RowRequest, currency string) (io.ReadCloser, error)
}

// Coordinator owns the session registry. One session is active per process;
// starting a new one replaces the active pointer and cancels the replaced
// session's stream so it cannot leak.
type Coordinator struct {
	source   StreamSource
	currency string

	mu       sync.Mutex
	sessions map[string]*Session
	active   *Session
	cancels  map[string]context.CancelFunc

	checkpoints *checkpointQueue
}

// NewCoordinator creates a coordinator persisting checkpoints to st.
func NewCoordinator(source StreamSource, st store.Store, currency string, queueDepth int) *Coordinator {
	return &Coordinator{
		source:      source,
		currency:    currency,
		sessions:    make(map[string]*Session),
		cancels:     make(map[string]context.CancelFunc),
		checkpoints: newCheckpointQueue(st, queueDepth),
	}
}

// Start begins validating a row collection. Rows already resolved are kept
// as-is and excluded from the request batch, which is what makes resuming a
// partially validated list cheap. The session runs on its own context,
// deliberately decoupled from the caller's: navigating away from a view (or
// an HTTP request ending) never aborts in-flight validation.
func (c *Coordinator) Start(ctx context.Context, listID string, rows []model.PartsListRow) (*Session, error) {
	reqs := buildRequests(rows)
	if len(reqs) == 0 {
		return nil, eris.Errorf("orchestrator: list %s has no rows to validate", listID)
	}
	for i := range rows {
		if rows[i].Status != model.RowResolved {
			rows[i].Status = model.RowValidating
		}
	}

	sessCtx, cancel := context.WithCancel(context.Background())

	stream, err := c.source.ValidateBatch(sessCtx, reqs, c.currency)
	if err != nil {
		cancel()
		return nil, eris.Wrapf(err, "orchestrator: open validation stream for %s", listID)
	}

	sess := newSession(uuid.New().String(), listID, rows, len(reqs), cancel, c.checkpoints)

	c.mu.Lock()
	if c.active != nil && c.active.State() == StateRunning {
		// Replacing a running session. The old stream is cancelled, not
		// orphaned: keeping it alive with no way to reach it again is a
		// leak by construction.
		zap.L().Warn("orchestrator: replacing active session",
			zap.String("old_session_id", c.active.ID),
			zap.String("new_session_id", sess.ID),
		)
		if oldCancel := c.cancels[c.active.ID]; oldCancel != nil {
			oldCancel()
		}
	}
	c.sessions[sess.ID] = sess
	c.cancels[sess.ID] = cancel
	c.active = sess
	c.mu.Unlock()

	go sess.run(sessCtx, stream)

	zap.L().Info("orchestrator: session started",
		zap.String("session_id", sess.ID),
		zap.String("list_id", listID),
		zap.Int("rows", len(rows)),
		zap.Int("to_validate", len(reqs)),
	)
	return sess, nil
}

// Get returns a session by id.
func (c *Coordinator) Get(sessionID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, eris.Errorf("orchestrator: unknown session %s", sessionID)
	}
	return sess, nil
}

// Subscribe attaches an observer to a session and returns the observer id.
// The observer immediately receives the current snapshot.
func (c *Coordinator) Subscribe(sessionID string, o Observer) (int, error) {
	sess, err := c.Get(sessionID)
	if err != nil {
		return 0, err
	}
	return sess.subscribe(o), nil
}

// Unsubscribe detaches an observer. The session keeps running.
func (c *Coordinator) Unsubscribe(sessionID string, observerID int) error {
	sess, err := c.Get(sessionID)
	if err != nil {
		return err
	}
	sess.unsubscribe(observerID)
	return nil
}

// Cancel releases a session's underlying stream. The session transitions to
// cancelled once the read loop observes the closed context; rows applied so
// far are checkpointed.
func (c *Coordinator) Cancel(sessionID string) error {
	c.mu.Lock()
	cancel, ok := c.cancels[sessionID]
	c.mu.Unlock()
	if !ok {
		return eris.Errorf("orchestrator: unknown session %s", sessionID)
	}
	cancel()
	return nil
}

// Sessions returns a snapshot per known session, newest registration order
// not guaranteed; sorted by session id for determinism.
func (c *Coordinator) Sessions() []Snapshot {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].SessionID < snaps[j].SessionID })
	return snaps
}

// CheckpointStats reports checkpoint write outcomes.
func (c *Coordinator) CheckpointStats() (written, failed, dropped int64) {
	return c.checkpoints.stats()
}

// Close flushes pending checkpoint writes. Running sessions are not
// cancelled; callers cancel explicitly if they want that.
func (c *Coordinator) Close() {
	c.checkpoints.close()
}

// buildRequests converts unresolved rows into catalog row requests.
func buildRequests(rows []model.PartsListRow) []catalog.RowRequest {
	var reqs []catalog.RowRequest
	for i := range rows {
		if rows[i].Status == model.RowResolved {
			continue
		}
		reqs = append(reqs, catalog.RowRequest{
			RowIndex:     rows[i].RowIndex,
			MPN:          rows[i].RawMPN,
			Manufacturer: rows[i].RawManufacturer,
			Description:  rows[i].RawDescription,
		})
	}
	return reqs
}
