package reclaim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemover struct {
	mu      sync.Mutex
	removed []uuid.UUID
	fail    map[uuid.UUID]bool

	release  chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRemover) RemoveStaging(ctx context.Context, id uuid.UUID) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("permission denied")
	}
	f.removed = append(f.removed, id)
	return nil
}

func TestQueue_RemovesEverythingBeforeStopReturns(t *testing.T) {
	r := &fakeRemover{}
	q := New(r, 3, 10, logging.Nop())
	q.Start(context.Background())

	var ids []uuid.UUID
	for i := 0; i < 25; i++ {
		id := uuid.New()
		ids = append(ids, id)
		require.NoError(t, q.Enqueue(context.Background(), id))
	}
	q.Stop()

	assert.ElementsMatch(t, ids, r.removed)
}

func TestQueue_BoundsConcurrency(t *testing.T) {
	r := &fakeRemover{release: make(chan struct{})}
	q := New(r, 2, 4, logging.Nop())
	q.Start(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 6; i++ {
			_ = q.Enqueue(context.Background(), uuid.New())
		}
	}()

	// 2 removals running, 4 waiting: everything fits.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue should not block while capacity remains")
	}
	assert.LessOrEqual(t, r.peak.Load(), int32(2))

	close(r.release)
	q.Stop()
	assert.Len(t, r.removed, 6)
	assert.LessOrEqual(t, r.peak.Load(), int32(2))
}

func TestQueue_EnqueueBlocksWhenFull(t *testing.T) {
	r := &fakeRemover{release: make(chan struct{})}
	q := New(r, 1, 1, logging.Nop())
	q.Start(context.Background())
	t.Cleanup(func() {
		close(r.release)
		q.Stop()
	})

	require.NoError(t, q.Enqueue(context.Background(), uuid.New()))
	require.Eventually(t, func() bool { return r.inFlight.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), uuid.New()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, uuid.New())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_FailuresAreNotFatal(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	r := &fakeRemover{fail: map[uuid.UUID]bool{bad: true}}
	q := New(r, 1, 2, logging.Nop())
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), bad))
	require.NoError(t, q.Enqueue(context.Background(), good))
	q.Stop()

	assert.Equal(t, []uuid.UUID{good}, r.removed)
}

func TestQueue_EnqueueAfterStop(t *testing.T) {
	q := New(&fakeRemover{}, 1, 1, logging.Nop())
	q.Start(context.Background())
	q.Stop()
	q.Stop()

	require.ErrorIs(t, q.Enqueue(context.Background(), uuid.New()), ErrStopped)
}
