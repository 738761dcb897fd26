package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/xref-cli/internal/model"
	"github.com/sells-group/xref-cli/internal/resilience"
	"github.com/sells-group/xref-cli/internal/store"
)

// checkpointEveryNRecords is how often the row collection is persisted
// during a running session.
const checkpointEveryNRecords = 5

// checkpointQueue serializes best-effort checkpoint writes through a
// bounded queue with bounded retry. Writes never block the read loop: when
// the queue is full the write is dropped and counted, so a string of
// failed checkpoints is observable without stalling the stream.
type checkpointQueue struct {
	store store.Store
	retry resilience.RetryConfig

	ch   chan checkpointJob
	wg   sync.WaitGroup
	once sync.Once

	dropped atomic.Int64
	failed  atomic.Int64
	written atomic.Int64
}

type checkpointJob struct {
	listID string
	rows   []model.PartsListRow
}

func newCheckpointQueue(st store.Store, depth int) *checkpointQueue {
	if depth <= 0 {
		depth = 16
	}
	q := &checkpointQueue{
		store: st,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			ShouldRetry:    func(error) bool { return true },
			OnRetry:        resilience.RetryLogger("store", "checkpoint"),
		},
		ch: make(chan checkpointJob, depth),
	}
	q.wg.Add(1)
	go q.drain()
	return q
}

// enqueue submits a checkpoint write. Fire-and-forget: a full queue drops
// the job rather than blocking the caller.
func (q *checkpointQueue) enqueue(listID string, rows []model.PartsListRow) {
	select {
	case q.ch <- checkpointJob{listID: listID, rows: rows}:
	default:
		q.dropped.Add(1)
		zap.L().Warn("orchestrator: checkpoint queue full, dropping write",
			zap.String("list_id", listID),
			zap.Int64("dropped_total", q.dropped.Load()),
		)
	}
}

func (q *checkpointQueue) drain() {
	defer q.wg.Done()
	for job := range q.ch {
		err := resilience.Do(context.Background(), q.retry, func(ctx context.Context) error {
			return q.store.SaveRows(ctx, job.listID, job.rows)
		})
		if err != nil {
			q.failed.Add(1)
			zap.L().Warn("orchestrator: checkpoint write failed",
				zap.String("list_id", job.listID),
				zap.Error(err),
			)
			continue
		}
		q.written.Add(1)
	}
}

// close stops the writer after flushing queued jobs.
func (q *checkpointQueue) close() {
	q.once.Do(func() {
		close(q.ch)
	})
	q.wg.Wait()
}

// stats reports write outcomes for observability.
func (q *checkpointQueue) stats() (written, failed, dropped int64) {
	return q.written.Load(), q.failed.Load(), q.dropped.Load()
}
