package app

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingStore struct {
	release chan struct{}
	started chan struct{}
	calls   atomic.Int32
	done    atomic.Bool
	cutoff  time.Time
}

func newBlockingStore() *blockingStore {
	return &blockingStore{release: make(chan struct{}), started: make(chan struct{}, 1)}
}

func (s *blockingStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.calls.Add(1)
	s.cutoff = cutoff
	s.started <- struct{}{}
	<-s.release
	s.done.Store(true)
	return 3, nil
}

func testPruner(store journalPruner) *pruner {
	p := newPruner(store, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return p
}

func TestPruner_WaitBlocksUntilPruneReturns(t *testing.T) {
	store := newBlockingStore()
	p := testPruner(store)

	p.Trigger(context.Background())
	<-store.started

	waited := make(chan struct{})
	go func() {
		p.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while prune was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(store.release)
	require.Eventually(t, func() bool {
		select {
		case <-waited:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.True(t, store.done.Load())
	assert.Equal(t, time.Unix(1_700_000_000, 0).Add(-time.Hour), store.cutoff)
}

func TestPruner_SkipsOverlappingRuns(t *testing.T) {
	store := newBlockingStore()
	p := testPruner(store)

	p.Trigger(context.Background())
	<-store.started
	p.Trigger(context.Background())

	close(store.release)
	p.Wait()
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestPruner_IgnoresTriggerAfterShutdown(t *testing.T) {
	store := newBlockingStore()
	p := testPruner(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Trigger(ctx)
	p.Wait()

	assert.Zero(t, store.calls.Load())
}
