package worker

import (
	"context"
	"sync"
	"testing"
	"time"
)

type reaperQueueStub struct {
	mu       sync.Mutex
	requeues int
}

func (q *reaperQueueStub) Enqueue(context.Context, string, int) error { return nil }

func (q *reaperQueueStub) ClaimBlocking(ctx context.Context, _ time.Duration) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (q *reaperQueueStub) Ack(context.Context, string) error { return nil }

func (q *reaperQueueStub) RequeueStale(context.Context, int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requeues++
	return 0, nil
}

func (q *reaperQueueStub) requeueCalls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.requeues
}

type staleStoreStub struct {
	mu         sync.Mutex
	calls      int
	lastCutoff time.Time
}

func (s *staleStoreStub) FailStaleRunning(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastCutoff = cutoff
	return 1, nil
}

func (s *staleStoreStub) snapshot() (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.lastCutoff
}

func TestReaper_SweepsQueueAndStaleRunningJobs(t *testing.T) {
	queue := &reaperQueueStub{}
	store := &staleStoreStub{}

	staleAfter := time.Minute
	reaper := NewReaper(queue, store, 5*time.Millisecond, staleAfter)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	reaper.Run(ctx)

	if queue.requeueCalls() == 0 {
		t.Fatal("processing lists were never swept")
	}

	calls, cutoff := store.snapshot()
	if calls == 0 {
		t.Fatal("stale running jobs were never swept")
	}

	// cutoff = sweep time minus staleAfter, so it lands in [start-1m, now-1m]
	if cutoff.Before(start.Add(-staleAfter)) || cutoff.After(time.Now().Add(-staleAfter).Add(time.Second)) {
		t.Fatalf("cutoff = %v, want about %v before the sweep", cutoff, staleAfter)
	}
}

func TestReaper_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		NewReaper(&reaperQueueStub{}, &staleStoreStub{}, time.Millisecond, time.Minute).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on cancel")
	}
}
