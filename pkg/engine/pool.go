package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolClosed is returned by Submit after Shutdown has started.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is one unit of work submitted to the pool.
type Task func(ctx context.Context)

// WorkerPool bounds how many workflow runs are in flight at once. Triggers
// submit runs fire-and-forget; a full queue applies backpressure to the
// event source instead of spawning unbounded goroutines.
type WorkerPool struct {
	logger *slog.Logger
	tasks  chan Task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool with the given number of workers and queue
// depth and starts the workers immediately.
func NewWorkerPool(ctx context.Context, logger *slog.Logger, workers, queueDepth int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}

	if queueDepth <= 0 {
		queueDepth = workers
	}

	pool := &WorkerPool{
		logger: logger.With("module", "worker_pool"),
		tasks:  make(chan Task, queueDepth),
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)

		go pool.worker(ctx)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for task := range p.tasks {
		task(ctx)
	}
}

// Submit enqueues a task, blocking while the queue is full. It returns
// ctx.Err() if the caller gives up waiting.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	// The read lock spans the send so Shutdown cannot close the channel
	// under a blocked sender.
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to drain.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return
	}

	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool drained")
}
