// Package reclaim removes staging bytes left behind by swept rows through a
// bounded queue served by a fixed number of workers.
package reclaim

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/metrics"
	"github.com/google/uuid"
)

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("reclaim queue stopped")

// Remover deletes the staging object for an id.
type Remover interface {
	RemoveStaging(ctx context.Context, id uuid.UUID) error
}

// Queue runs staging byte removals with at most workers in flight and at
// most size waiting.
type Queue struct {
	remover Remover
	queue   chan uuid.UUID
	workers int
	logger  logging.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func New(remover Remover, workers, size int, logger logging.Logger) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if size <= 0 {
		size = 1000
	}
	return &Queue{
		remover: remover,
		queue:   make(chan uuid.UUID, size),
		workers: workers,
		logger:  logger.With("module", "reclaim"),
	}
}

// Start launches the workers. They keep draining the queue after ctx is
// cancelled until Stop closes it.
func (q *Queue) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info(ctx, "reclaim queue started", "workers", q.workers, "size", cap(q.queue))
}

// Enqueue schedules removal of the staging bytes for id. It blocks while the
// queue is full, until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, id uuid.UUID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrStopped
	}

	select {
	case q.queue <- id:
		metrics.SetReclaimQueueDepth(len(q.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new work, waits for queued removals to finish and joins
// the workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.queue)
	}
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info(context.Background(), "reclaim queue stopped")
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for id := range q.queue {
		metrics.SetReclaimQueueDepth(len(q.queue))
		err := q.remover.RemoveStaging(ctx, id)
		metrics.RecordReclaim(err)
		if err != nil {
			q.logger.Warn(ctx, "failed to remove expired staging file", "id", id, "error", err)
		}
	}
}
