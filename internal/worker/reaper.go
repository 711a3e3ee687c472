package worker

import (
	"context"
	"log"
	"time"

	"reactify-service/internal/service"
)

// StaleJobStore fails running jobs abandoned by a dead worker.
type StaleJobStore interface {
	FailStaleRunning(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper recovers work lost to crashed workers on a fixed interval:
// ids abandoned in Redis processing lists go back to their queue lane,
// and jobs stuck in running past the stale deadline are failed so a
// status query always reaches a terminal answer. staleAfter must exceed
// the longest legitimate pipeline run including retries.
type Reaper struct {
	queue      service.Queue
	store      StaleJobStore
	interval   time.Duration
	staleAfter time.Duration
	maxPerLane int64
}

func NewReaper(queue service.Queue, store StaleJobStore, interval, staleAfter time.Duration) *Reaper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Reaper{
		queue:      queue,
		store:      store,
		interval:   interval,
		staleAfter: staleAfter,
		maxPerLane: 100,
	}
}

// Run blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	if n, err := r.queue.RequeueStale(ctx, r.maxPerLane); err != nil {
		log.Printf("[reaper] requeue error: %v", err)
	} else if n > 0 {
		log.Printf("[reaper] requeued %d jobs from processing", n)
	}

	if n, err := r.store.FailStaleRunning(ctx, time.Now().Add(-r.staleAfter)); err != nil {
		log.Printf("[reaper] stale sweep error: %v", err)
	} else if n > 0 {
		log.Printf("[reaper] failed %d stale running jobs", n)
	}
}
