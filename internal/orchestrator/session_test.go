package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/xref-cli/internal/model"
	"github.com/sells-group/xref-cli/internal/store"
	"github.com/sells-group/xref-cli/pkg/catalog"
)

// memStore is an in-memory checkpoint store for tests.
type memStore struct {
	mu      sync.Mutex
	saves   int
	rows    map[string][]model.PartsListRow
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string][]model.PartsListRow)}
}

func (m *memStore) SaveRows(ctx context.Context, listID string, rows []model.PartsListRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.rows[listID] = model.CloneRows(rows)
	return nil
}

func (m *memStore) LoadRows(ctx context.Context, listID string) ([]model.PartsListRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[listID], nil
}

func (m *memStore) ListCheckpoints(ctx context.Context, limit int) ([]store.CheckpointSummary, error) {
	return nil, nil
}

func (m *memStore) DeleteCheckpoint(ctx context.Context, listID string) error { return nil }
func (m *memStore) Migrate(ctx context.Context) error                         { return nil }
func (m *memStore) Close() error                                              { return nil }

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// scriptedSource returns a canned NDJSON stream and records the request.
type scriptedSource struct {
	mu       sync.Mutex
	stream   string
	lastReqs []catalog.RowRequest
	cancelFn func(ctx context.Context) io.ReadCloser
}

func (s *scriptedSource) ValidateBatch(ctx context.Context, reqs []catalog.RowRequest, currency string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.lastReqs = reqs
	s.mu.Unlock()
	if s.cancelFn != nil {
		return s.cancelFn(ctx), nil
	}
	return io.NopCloser(strings.NewReader(s.stream)), nil
}

func (s *scriptedSource) requests() []catalog.RowRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReqs
}

func pendingRows(n int) []model.PartsListRow {
	rows := make([]model.PartsListRow, n)
	for i := range rows {
		rows[i] = model.PartsListRow{
			RowIndex: i,
			RawMPN:   fmt.Sprintf("MPN-%03d", i),
			Status:   model.RowPending,
		}
	}
	return rows
}

func resultLine(t *testing.T, rowIndex int, status model.RowStatus) string {
	t.Helper()
	data, err := json.Marshal(RowResult{RowIndex: rowIndex, Status: status})
	require.NoError(t, err)
	return string(data)
}

func waitDone(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestSessionCompletes(t *testing.T) {
	lines := []string{
		resultLine(t, 0, model.RowResolved),
		resultLine(t, 1, model.RowNotFound),
		resultLine(t, 2, model.RowResolved),
	}
	src := &scriptedSource{stream: strings.Join(lines, "\n") + "\n"}
	st := newMemStore()
	coord := NewCoordinator(src, st, "USD", 16)
	defer coord.Close()

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(3))
	require.NoError(t, err)
	waitDone(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.True(t, snap.Done)
	assert.InDelta(t, 1.0, snap.Progress, 0.001)
	assert.Equal(t, model.RowResolved, snap.Rows[0].Status)
	assert.Equal(t, model.RowNotFound, snap.Rows[1].Status)
	assert.Equal(t, model.RowResolved, snap.Rows[2].Status)
}

func TestSessionMissingTrailingNewline(t *testing.T) {
	lines := []string{
		resultLine(t, 0, model.RowResolved),
		resultLine(t, 1, model.RowResolved),
	}
	// No trailing newline on the final record.
	src := &scriptedSource{stream: strings.Join(lines, "\n")}
	coord := NewCoordinator(src, newMemStore(), "USD", 16)
	defer coord.Close()

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(2))
	require.NoError(t, err)
	waitDone(t, sess)

	snap := sess.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, model.RowResolved, snap.Rows[1].Status)
}

func TestSessionSkipsMalformedRecord(t *testing.T) {
	lines := []string{
		resultLine(t, 0, model.RowResolved),
		`{"rowIndex": not json`,
		resultLine(t, 2, model.RowResolved),
	}
	src := &scriptedSource{stream: strings.Join(lines, "\n") + "\n"}
	coord := NewCoordinator(src, newMemStore(), "USD", 16)
	defer coord.Close()

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(3))
	require.NoError(t, err)
	waitDone(t, sess)

	snap := sess.Snapshot()
	// The malformed line is skipped; the stream keeps going and the session
	// still completes. Row 1 keeps its pre-stream state.
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, model.RowResolved, snap.Rows[0].Status)
	assert.Equal(t, model.RowValidating, snap.Rows[1].Status)
	assert.Equal(t, model.RowResolved, snap.Rows[2].Status)
}

func TestSessionUnknownRowIndexIgnored(t *testing.T) {
	lines := []string{
		resultLine(t, 0, model.RowResolved),
		resultLine(t, 99, model.RowResolved),
	}
	src := &scriptedSource{stream: strings.Join(lines, "\n") + "\n"}
	coord := NewCoordinator(src, newMemStore(), "USD", 16)
	defer coord.Close()

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(2))
	require.NoError(t, err)
	waitDone(t, sess)

	assert.Equal(t, StateCompleted, sess.Snapshot().State)
}

func TestSessionResultMergesRecommendations(t *testing.T) {
	price := 0.042
	rec := RowResult{
		RowIndex:     0,
		Status:       model.RowResolved,
		ResolvedPart: &model.PartAttributes{MPN: "MPN-000", Status: model.StatusActive, UnitPrice: &price},
		SuggestedReplacement: &model.XrefRecommendation{
			Part:            model.PartAttributes{MPN: "ALT-000"},
			MatchPercentage: 97.5,
		},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	src := &scriptedSource{stream: string(data) + "\n"}
	coord := NewCoordinator(src, newMemStore(), "USD", 16)
	defer coord.Close()

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(1))
	require.NoError(t, err)
	waitDone(t, sess)

	row := sess.Snapshot().Rows[0]
	require.NotNil(t, row.ResolvedPart)
	assert.Equal(t, "MPN-000", row.ResolvedPart.MPN)
	require.NotNil(t, row.SuggestedReplacement)
	assert.Equal(t, "ALT-000", row.SuggestedReplacement.Part.MPN)
	assert.InDelta(t, 97.5, row.SuggestedReplacement.MatchPercentage, 0.001)
}

func TestSessionCheckpointCadence(t *testing.T) {
	var lines []string
	for i := range 12 {
		lines = append(lines, resultLine(t, i, model.RowResolved))
	}
	src := &scriptedSource{stream: strings.Join(lines, "\n") + "\n"}
	st := newMemStore()
	coord := NewCoordinator(src, st, "USD", 16)

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(12))
	require.NoError(t, err)
	waitDone(t, sess)
	coord.Close() // flush queued checkpoint writes

	// Every 5th record plus the final write: records 5 and 10, then the
	// terminal checkpoint.
	assert.Equal(t, 3, st.saveCount())

	saved, err := st.LoadRows(context.Background(), "list-1")
	require.NoError(t, err)
	require.Len(t, saved, 12)
	for _, row := range saved {
		assert.Equal(t, model.RowResolved, row.Status)
	}

	written, failed, dropped := coord.CheckpointStats()
	assert.Equal(t, int64(3), written)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)
}

func TestSessionFinalCheckpointAlwaysWritten(t *testing.T) {
	// 3 records never hit the every-5th cadence; the terminal write still
	// persists them.
	var lines []string
	for i := range 3 {
		lines = append(lines, resultLine(t, i, model.RowResolved))
	}
	src := &scriptedSource{stream: strings.Join(lines, "\n") + "\n"}
	st := newMemStore()
	coord := NewCoordinator(src, st, "USD", 16)

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(3))
	require.NoError(t, err)
	waitDone(t, sess)
	coord.Close()

	assert.Equal(t, 1, st.saveCount())
}

func TestSessionCheckpointFailureDoesNotStopStream(t *testing.T) {
	var lines []string
	for i := range 6 {
		lines = append(lines, resultLine(t, i, model.RowResolved))
	}
	src := &scriptedSource{stream: strings.Join(lines, "\n") + "\n"}
	st := newMemStore()
	st.saveErr = eris.New("disk full")
	coord := NewCoordinator(src, st, "USD", 16)

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(6))
	require.NoError(t, err)
	waitDone(t, sess)
	coord.Close()

	// The session itself is unaffected by persistent write failures.
	assert.Equal(t, StateCompleted, sess.Snapshot().State)

	written, failed, _ := coord.CheckpointStats()
	assert.Zero(t, written)
	assert.Positive(t, failed)
}

func TestSessionObserverReceivesOrderedSnapshots(t *testing.T) {
	var lines []string
	for i := range 4 {
		lines = append(lines, resultLine(t, i, model.RowResolved))
	}
	src := &scriptedSource{stream: strings.Join(lines, "\n") + "\n"}
	coord := NewCoordinator(src, newMemStore(), "USD", 16)
	defer coord.Close()

	// Hold the registry lock indirectly: subscribe before the stream is
	// consumed by using a source that waits for the observer.
	ready := make(chan struct{})
	src.cancelFn = func(ctx context.Context) io.ReadCloser {
		pr, pw := io.Pipe()
		go func() {
			<-ready
			_, _ = pw.Write([]byte(strings.Join(lines, "\n") + "\n"))
			_ = pw.Close()
		}()
		return pr
	}

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(4))
	require.NoError(t, err)

	var mu sync.Mutex
	var progress []float64
	_, err = coord.Subscribe(sess.ID, func(snap Snapshot) {
		mu.Lock()
		progress = append(progress, snap.Progress)
		mu.Unlock()
	})
	require.NoError(t, err)
	close(ready)
	waitDone(t, sess)

	mu.Lock()
	defer mu.Unlock()
	// Initial snapshot on subscribe, one per record, one terminal.
	require.GreaterOrEqual(t, len(progress), 5)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1], "progress must be monotonic")
	}
	assert.InDelta(t, 1.0, progress[len(progress)-1], 0.001)
}

func TestSessionLateSubscriberSeesCurrentState(t *testing.T) {
	lines := []string{resultLine(t, 0, model.RowResolved)}
	src := &scriptedSource{stream: strings.Join(lines, "\n") + "\n"}
	coord := NewCoordinator(src, newMemStore(), "USD", 16)
	defer coord.Close()

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(1))
	require.NoError(t, err)
	waitDone(t, sess)

	// Subscribing after completion immediately delivers the terminal
	// snapshot with everything applied so far.
	var got Snapshot
	_, err = coord.Subscribe(sess.ID, func(snap Snapshot) { got = snap })
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, got.State)
	assert.True(t, got.Done)
	assert.Equal(t, model.RowResolved, got.Rows[0].Status)
}

func TestSessionUnsubscribeStopsDelivery(t *testing.T) {
	src := &scriptedSource{}
	ready := make(chan struct{})
	src.cancelFn = func(ctx context.Context) io.ReadCloser {
		pr, pw := io.Pipe()
		go func() {
			<-ready
			_, _ = pw.Write([]byte(resultLine(t, 0, model.RowResolved) + "\n"))
			_ = pw.Close()
		}()
		return pr
	}
	coord := NewCoordinator(src, newMemStore(), "USD", 16)
	defer coord.Close()

	sess, err := coord.Start(context.Background(), "list-1", pendingRows(1))
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	id, err := coord.Subscribe(sess.ID, func(Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, coord.Unsubscribe(sess.ID, id))

	close(ready)
	waitDone(t, sess)

	mu.Lock()
	defer mu.Unlock()
	// Only the immediate snapshot delivered at subscribe time.
	assert.Equal(t, 1, calls)
}
