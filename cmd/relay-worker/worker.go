// Package main provides the Relay worker, the process that binds CRM
// events and schedules to workflows and executes them.
package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/relaycrm/relay/pkg/binder"
	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/eventbus"
	"github.com/relaycrm/relay/pkg/persistence"
)

const (
	delayPollInterval = time.Second
	sweepInterval     = time.Minute
	sweepGrace        = 30 * time.Minute
	scheduleRefresh   = 30 * time.Second
)

type Worker struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	businessBus eventbus.EventBus
	engine      *engine.Engine
	records     *engine.RecordManager
	binder      *binder.Binder
	pool        *engine.WorkerPool
}

func NewWorker(
	logger *slog.Logger,
	persistence persistence.Persistence,
	businessBus eventbus.EventBus,
	eng *engine.Engine,
	records *engine.RecordManager,
	pool *engine.WorkerPool,
) *Worker {
	return &Worker{
		logger:      logger,
		persistence: persistence,
		businessBus: businessBus,
		engine:      eng,
		records:     records,
		binder:      binder.NewBinder(logger, persistence.WorkflowRepository(), eng, pool),
		pool:        pool,
	}
}

// Start wires the binder to the business bus, starts the cron scheduler,
// the delay poller and the stale sweep, then consumes the bus until ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.binder.RegisterHandlers(w.businessBus); err != nil {
		return err
	}

	if err := w.binder.StartScheduler(ctx, scheduleRefresh); err != nil {
		return err
	}

	w.engine.StartDelayPoller(ctx, delayPollInterval)
	w.startSweep(ctx)

	w.logger.InfoContext(ctx, "Worker started, consuming business events")

	return w.businessBus.Subscribe(ctx)
}

// startSweep periodically re-finalizes executions orphaned in the running
// state, e.g. after a crash of a previous worker.
func (w *Worker) startSweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				swept, err := w.records.SweepStale(ctx, sweepGrace)
				if err != nil {
					w.logger.ErrorContext(ctx, "Stale execution sweep failed", "error", err)

					continue
				}

				if swept > 0 {
					w.logger.InfoContext(ctx, "Swept stale executions", "count", swept)
				}
			}
		}
	}()
}

// Stop drains the run queue.
func (w *Worker) Stop() {
	w.pool.Shutdown()
}
