// Package sweeper periodically removes expired staging files and finishes
// promotions interrupted after their metadata commit.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/metrics"
)

// RecoveryGrace is how old an uncommitted file row has to be before the
// sweeper finishes its promotion.
const RecoveryGrace = time.Minute

type Store interface {
	SweepExpired(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

type Recoverer interface {
	RecoverUncommitted(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type Sweeper struct {
	store      Store
	recoverer  Recoverer
	period     time.Duration
	expiration time.Duration
	limit      int
	logger     logging.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New returns a sweeper removing staging files older than expiration, at
// most limit per period. recoverer may be nil.
func New(store Store, recoverer Recoverer, period, expiration time.Duration, limit int, logger logging.Logger) *Sweeper {
	return &Sweeper{
		store:      store,
		recoverer:  recoverer,
		period:     period,
		expiration: expiration,
		limit:      limit,
		logger:     logger.With("module", "sweeper"),
		stop:       make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop ends the loop and waits for the iteration in progress.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.logger.Info(ctx, "sweeper started", "period", s.period, "expiration", s.expiration, "limit", s.limit)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "sweeper stopped")
			return
		case <-s.stop:
			s.logger.Info(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one iteration.
func (s *Sweeper) Sweep(ctx context.Context) {
	removed, err := s.store.SweepExpired(ctx, s.expiration, s.limit)
	metrics.RecordSweep(removed, err)
	if err != nil {
		s.logger.Warn(ctx, "sweep failed", "error", err)
	} else {
		s.logger.Info(ctx, "expired staging files removed", "count", removed)
	}

	if s.recoverer == nil {
		return
	}
	if _, err := s.recoverer.RecoverUncommitted(ctx, RecoveryGrace, s.limit); err != nil {
		s.logger.Warn(ctx, "recovery of uncommitted files failed", "error", err)
	}
}
