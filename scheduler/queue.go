// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scheduler tracks each open dispute's challenge window and
// invokes a caller-supplied settlement handler when the window elapses.
//
// Jobs live in an expiry-ordered heap behind a single wake-up timer, so
// each wake costs O(log n) rather than an O(n) scan per tick. Nothing is
// persisted: a process restart loses all scheduled windows, and callers
// must re-register open disputes from the ledger on startup.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/arbiter/utils/timer/mockable"
)

// DefaultRetryInterval is how long a dispute waits after a failed handler
// invocation before it becomes due again.
const DefaultRetryInterval = 10 * time.Second

// Handler settles one dispute. Failed handlers are re-invoked on the next
// retry, so handlers must be idempotent.
type Handler func(ctx context.Context, disputeID ids.ID) error

// Config tunes the queue.
type Config struct {
	RetryInterval time.Duration `json:"retryInterval"`
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{RetryInterval: DefaultRetryInterval}
}

type job struct {
	id           ids.ID
	windowEndsAt time.Time
	index        int
}

// jobHeap orders jobs by expiry, soonest first.
type jobHeap []*job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].windowEndsAt.Before(h[j].windowEndsAt) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *jobHeap) Push(x interface{}) { j := x.(*job); j.index = len(*h); *h = append(*h, j) }
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

// Queue schedules settlement of open disputes.
type Queue struct {
	log     log.Logger
	cfg     Config
	clock   *mockable.Clock
	metrics *queueMetrics

	mu        sync.Mutex
	jobs      map[ids.ID]*job
	heap      jobHeap
	handler   Handler
	completed []func(ids.ID)
	failed    []func(ids.ID, error)
	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	running   bool
}

// New returns a stopped queue. Call Start to begin monitoring windows.
func New(logger log.Logger, cfg Config, registerer metric.Registerer) (*Queue, error) {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	metrics, err := newQueueMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Queue{
		log:     logger,
		cfg:     cfg,
		clock:   &mockable.Clock{},
		metrics: metrics,
		jobs:    make(map[ids.ID]*job),
		wake:    make(chan struct{}, 1),
	}, nil
}

// Clock exposes the queue clock so tests can fake time.
func (q *Queue) Clock() *mockable.Clock {
	return q.clock
}

// AddDispute schedules a dispute whose challenge window ends after
// windowDuration. Re-adding an already tracked dispute is a no-op, which
// keeps registration idempotent across orchestrators.
func (q *Queue) AddDispute(id ids.ID, windowDuration time.Duration) {
	q.mu.Lock()
	if _, ok := q.jobs[id]; ok {
		q.mu.Unlock()
		return
	}
	j := &job{id: id, windowEndsAt: q.clock.Time().Add(windowDuration)}
	q.jobs[id] = j
	heap.Push(&q.heap, j)
	q.metrics.pending.Set(float64(len(q.jobs)))
	q.mu.Unlock()

	q.log.Debug("dispute scheduled",
		"disputeID", id,
		"windowEndsAt", j.windowEndsAt,
	)
	q.poke()
}

// PendingCount returns the number of disputes awaiting settlement.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// OnDisputeCompleted subscribes cb to successful settlements.
func (q *Queue) OnDisputeCompleted(cb func(ids.ID)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, cb)
}

// OnDisputeFailed subscribes cb to failed settlement attempts.
func (q *Queue) OnDisputeFailed(cb func(ids.ID, error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, cb)
}

// Start begins monitoring challenge windows, invoking handler for each
// dispute whose window has elapsed. It returns immediately; the monitor
// runs until Stop or ctx cancellation.
func (q *Queue) Start(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already started")
	}
	q.handler = handler
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	q.running = true
	go q.run(ctx)
	return nil
}

// Stop halts the monitor and waits for it to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stop)
	done := q.done
	q.mu.Unlock()
	<-done
}

// poke nudges the monitor to recompute its wake-up time.
func (q *Queue) poke() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		q.processDue(ctx)

		wait, ok := q.untilNext()
		if ok {
			timer.Reset(wait)
		}

		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case <-q.wake:
		case <-timer.C:
			continue
		}
		// A new or retried job may expire sooner than the armed timer.
		if ok && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// untilNext returns the duration until the soonest window expiry.
func (q *Queue) untilNext() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return 0, false
	}
	wait := q.heap[0].windowEndsAt.Sub(q.clock.Time())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// processDue fires the handler for every dispute whose window has
// elapsed. Handlers run sequentially; each invocation is contained, so
// one failing dispute does not block the rest. A dispute is removed only
// after its handler succeeds, guaranteeing at most one successful
// settlement per dispute and a retry after RetryInterval otherwise.
func (q *Queue) processDue(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.heap) == 0 || q.heap[0].windowEndsAt.After(q.clock.Time()) {
			q.mu.Unlock()
			return
		}
		j := heap.Pop(&q.heap).(*job)
		handler := q.handler
		q.mu.Unlock()

		err := q.invoke(ctx, handler, j.id)
		if err == nil {
			q.mu.Lock()
			delete(q.jobs, j.id)
			q.metrics.pending.Set(float64(len(q.jobs)))
			completed := q.completed
			q.mu.Unlock()

			q.metrics.settled.Inc()
			q.log.Info("dispute settled", "disputeID", j.id)
			for _, cb := range completed {
				cb(j.id)
			}
			continue
		}

		q.mu.Lock()
		j.windowEndsAt = q.clock.Time().Add(q.cfg.RetryInterval)
		heap.Push(&q.heap, j)
		failed := q.failed
		q.mu.Unlock()

		q.metrics.handlerFailures.Inc()
		q.log.Warn("settlement handler failed",
			"disputeID", j.id,
			"retryIn", q.cfg.RetryInterval,
			"error", err,
		)
		for _, cb := range failed {
			cb(j.id, err)
		}
	}
}

// invoke runs the handler with panic containment.
func (q *Queue) invoke(ctx context.Context, handler Handler, id ids.ID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("settlement handler panicked: %v", r)
		}
	}()
	if handler == nil {
		return fmt.Errorf("no settlement handler installed")
	}
	return handler(ctx, id)
}
