package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	age   time.Duration
	limit int
}

type fakeStore struct {
	mu      sync.Mutex
	calls   []call
	removed int
	err     error
}

func (f *fakeStore) SweepExpired(_ context.Context, maxAge time.Duration, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{age: maxAge, limit: limit})
	return f.removed, f.err
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecoverer struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeRecoverer) RecoverUncommitted(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{age: olderThan, limit: limit})
	return 0, f.err
}

func TestSweeper_Sweep(t *testing.T) {
	store := &fakeStore{removed: 3}
	rec := &fakeRecoverer{}
	s := New(store, rec, time.Hour, 24*time.Hour, 100, logging.Nop())

	s.Sweep(context.Background())

	require.Len(t, store.calls, 1)
	assert.Equal(t, call{age: 24 * time.Hour, limit: 100}, store.calls[0])
	require.Len(t, rec.calls, 1)
	assert.Equal(t, call{age: RecoveryGrace, limit: 100}, rec.calls[0])
}

func TestSweeper_SweepErrorsAreNotFatal(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	rec := &fakeRecoverer{err: errors.New("db down")}
	s := New(store, rec, time.Hour, time.Hour, 10, logging.Nop())

	s.Sweep(context.Background())
	s.Sweep(context.Background())

	assert.Len(t, store.calls, 2)
	assert.Len(t, rec.calls, 2)
}

func TestSweeper_NilRecoverer(t *testing.T) {
	store := &fakeStore{}
	s := New(store, nil, time.Hour, time.Hour, 10, logging.Nop())

	assert.NotPanics(t, func() { s.Sweep(context.Background()) })
	assert.Len(t, store.calls, 1)
}

func TestSweeper_RunsPeriodicallyUntilStopped(t *testing.T) {
	store := &fakeStore{}
	s := New(store, nil, 5*time.Millisecond, time.Hour, 10, logging.Nop())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return store.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	n := store.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, store.count(), "no sweeps after Stop returns")

	// second Stop is a no-op
	s.Stop()
}

func TestSweeper_StopsOnContextCancel(t *testing.T) {
	store := &fakeStore{}
	s := New(store, nil, time.Hour, time.Hour, 10, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
	assert.Zero(t, store.count())
}
