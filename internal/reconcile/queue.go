package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OperationQueue is a single-consumer FIFO of Operation jobs. Producers
// (the Coordinator, resolved Interventions) enqueue; exactly one
// goroutine drains and executes them serially, so two mutations of the
// same path never race. Grounded on the original OperationWorker thread
// (queue.Queue + sentinel job + task_done in a finally) and, in spirit,
// on the teacher's WorkerPool — simplified from N workers to the single
// consumer spec §4.1 calls for.
type OperationQueue struct {
	deps     Deps
	notifier Notifier
	logger   *slog.Logger

	jobs chan Operation
	wg   sync.WaitGroup

	mu      sync.Mutex
	pending int // jobs enqueued but not yet marked done, for Join/Depth

	stopOnce sync.Once
	done     chan struct{}
}

// NewOperationQueue creates a queue with the given buffer capacity and
// starts its single worker goroutine.
func NewOperationQueue(deps Deps, notifier Notifier, capacity int) *OperationQueue {
	q := &OperationQueue{
		deps:     deps,
		notifier: notifier,
		logger:   deps.Logger,
		jobs:     make(chan Operation, capacity),
		done:     make(chan struct{}),
	}

	q.wg.Add(1)
	go q.run()

	return q
}

// Enqueue adds a job to the queue. Blocks if the buffer is full.
func (q *OperationQueue) Enqueue(op Operation) {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()

	q.jobs <- op
}

// Depth returns the number of jobs enqueued but not yet completed.
func (q *OperationQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.pending
}

// Stop signals the worker to exit after draining any jobs already
// enqueued, by pushing a nil sentinel behind them.
func (q *OperationQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.done)
		q.jobs <- nil
	})
}

// Join blocks until every enqueued job has completed and the queue is
// empty. Once Stop has been called it instead waits for the worker to
// exit, which happens after the jobs queued ahead of the stop sentinel
// have run.
func (q *OperationQueue) Join() {
	for {
		select {
		case <-q.done:
			q.wg.Wait()
			return
		default:
		}

		if q.Depth() == 0 {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}
}

func (q *OperationQueue) run() {
	defer q.wg.Done()

	ctx := context.Background()

	for job := range q.jobs {
		if job == nil {
			// Sentinel: stop() pushed this after close(q.done). Drain no
			// further and exit — any jobs queued behind it are abandoned,
			// matching the original's "None sentinel, task_done, continue"
			// but as a terminal break since a Go channel has no re-queue.
			return
		}

		q.execute(ctx, job)
	}
}

func (q *OperationQueue) execute(ctx context.Context, job Operation) {
	defer func() {
		q.mu.Lock()
		q.pending--
		q.mu.Unlock()
	}()

	err := job.Run(ctx, q.deps)
	if err == nil {
		return
	}

	if errors.Is(err, ErrNodeNotFound) {
		q.logger.Warn("operation skipped: node not found",
			"file", job.FileName(), "error", err)

		return
	}

	q.logger.Error("operation failed",
		"file", job.FileName(), "node", job.NodeTitle(), "error", err)

	if q.notifier != nil {
		q.notifier.Notify(fmt.Sprintf("Error while updating the file %s in project %s.",
			job.FileName(), job.NodeTitle()))
	}
}
