// Package engine walks validated workflow graphs: it dispatches node
// handlers, folds their outputs into the execution context, fans out
// branches, parks delay-suspended branches on the delay queue, and drives
// every execution record from open to terminal status.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaycrm/relay/pkg/delayqueue"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/otelhelper"
	"github.com/relaycrm/relay/pkg/protocol"
	"github.com/relaycrm/relay/pkg/registry"
)

// ErrExecutionUnknown is returned when a cancel or resume targets an
// execution this process is not running.
var ErrExecutionUnknown = errors.New("execution not running in this process")

// Engine is the graph walker. One Engine serves many concurrent
// executions; per-execution state lives in a run entry until the record is
// finalized.
type Engine struct {
	logger        *slog.Logger
	registry      *registry.Registry
	records       *RecordManager
	collaborators protocol.Collaborators
	delays        delayqueue.Queue
	tracer        trace.Tracer

	mu   sync.Mutex
	runs map[string]*run
}

// run is the in-flight state of one execution. pending counts live branch
// goroutines plus scheduled delay wakes; the record is finalized when it
// reaches zero.
type run struct {
	definition *models.WorkflowDefinition
	execution  *models.WorkflowExecution
	execCtx    *models.ExecutionContext
	done       chan struct{}

	// active tracks live branch goroutines only; suspended branches are
	// counted in pending but do not hold active, so Run can return while
	// a delay is parked.
	active sync.WaitGroup

	mu        sync.Mutex
	pending   int
	cancelled bool
	failure   *models.ExecutionError
}

func (r *run) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cancelled
}

// fail records the first fatal error; later failures in sibling branches
// keep the original.
func (r *run) fail(execErr *models.ExecutionError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failure == nil {
		r.failure = execErr
	}
}

func NewEngine(logger *slog.Logger, reg *registry.Registry, records *RecordManager, collaborators protocol.Collaborators, delays delayqueue.Queue) *Engine {
	return &Engine{
		logger:        logger.With("module", "engine"),
		registry:      reg,
		records:       records,
		collaborators: collaborators,
		delays:        delays,
		tracer:        otel.Tracer("relay/engine"),
		runs:          make(map[string]*run),
	}
}

// Run validates the definition, opens an execution record and walks the
// graph from the trigger node. It returns once every non-suspended branch
// has finished; the returned record is terminal unless a delay parked a
// branch, in which case it is still running and completes after the wake.
func (e *Engine) Run(ctx context.Context, definition *models.WorkflowDefinition, triggerPayload map[string]any) (*models.WorkflowExecution, error) {
	if err := models.ValidateGraph(definition); err != nil {
		return nil, err
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.TenantIDKey, definition.TenantID),
		attribute.String(otelhelper.WorkflowIDKey, definition.ID),
		attribute.String(otelhelper.WorkflowNameKey, definition.Name),
		attribute.String(otelhelper.TriggerKindKey, string(definition.Trigger)),
	)
	defer span.End()

	execution, err := e.records.Open(ctx, definition, triggerPayload)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))

	r := &run{
		definition: definition,
		execution:  execution,
		execCtx:    models.NewExecutionContext(execution.ID, definition.ID, definition.TenantID, triggerPayload),
		done:       make(chan struct{}),
	}

	e.mu.Lock()
	e.runs[execution.ID] = r
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "Starting workflow execution",
		"workflow_id", definition.ID, "execution_id", execution.ID, "trigger", definition.Trigger)

	e.spawnBranch(ctx, r, definition.TriggerNode().ID)
	r.active.Wait()

	return e.snapshot(ctx, r)
}

// spawnBranch starts one branch goroutine, accounting for it in both the
// pending count and the active wait group.
func (e *Engine) spawnBranch(ctx context.Context, r *run, nodeID string) {
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()

	r.active.Add(1)

	go func() {
		defer r.active.Done()
		defer e.finishBranch(ctx, r)
		e.walk(ctx, r, nodeID)
	}()
}

// Cancel flags a running execution. The walker checks the flag before each
// dispatch and on return from in-flight calls, so already dispatched
// external work completes but its result is discarded.
func (e *Engine) Cancel(executionID string) error {
	e.mu.Lock()
	r, ok := e.runs[executionID]
	e.mu.Unlock()

	if !ok {
		return ErrExecutionUnknown
	}

	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()

	e.logger.Info("Execution cancelled", "execution_id", executionID)

	return nil
}

// Done returns a channel closed when the execution record is finalized. An
// unknown execution id yields an already closed channel.
func (e *Engine) Done(executionID string) <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r, ok := e.runs[executionID]; ok {
		return r.done
	}

	closed := make(chan struct{})
	close(closed)

	return closed
}

// WakeDue drains the delay queue and resumes every parked branch whose
// wake time has passed.
func (e *Engine) WakeDue(ctx context.Context, now time.Time) error {
	entries, err := e.delays.PopDue(ctx, now)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		e.resume(ctx, entry)
	}

	return nil
}

// StartDelayPoller wakes due branches at the given cadence until ctx is done.
func (e *Engine) StartDelayPoller(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if err := e.WakeDue(ctx, now.UTC()); err != nil {
					e.logger.ErrorContext(ctx, "Delay queue poll failed", "error", err)
				}
			}
		}
	}()
}

// resume continues a parked branch at the delay node's successors. A wake
// for an execution this process no longer tracks is dropped; the stale
// sweep reconciles the orphaned record.
func (e *Engine) resume(ctx context.Context, entry delayqueue.Entry) {
	e.mu.Lock()
	r, ok := e.runs[entry.ExecutionID]
	e.mu.Unlock()

	if !ok {
		e.logger.WarnContext(ctx, "Dropping wake for unknown execution",
			"execution_id", entry.ExecutionID, "node_id", entry.NodeID)

		return
	}

	e.logger.InfoContext(ctx, "Resuming delayed branch",
		"execution_id", entry.ExecutionID, "node_id", entry.NodeID)

	for _, edge := range r.definition.OutgoingEdges(entry.NodeID) {
		e.spawnBranch(ctx, r, edge.Target)
	}

	// Release the wake's own pending slot.
	e.finishBranch(ctx, r)
}

// walk traverses one branch until it reaches a dead end, fails, suspends
// or is cancelled.
func (e *Engine) walk(ctx context.Context, r *run, nodeID string) {
	current := nodeID

	for current != "" {
		if r.isCancelled() {
			return
		}

		node := r.definition.NodeByID(current)
		if node == nil {
			// Validation guarantees edge endpoints exist; a miss here means
			// the definition changed under us, so end the branch.
			return
		}

		result, err := e.dispatch(ctx, r, node)

		if r.isCancelled() {
			return
		}

		finishedAt := time.Now().UTC()

		if err != nil {
			e.recordStep(ctx, r, node.ID, &models.NodeOutput{
				Error:      err.Error(),
				FinishedAt: finishedAt,
			})
			r.fail(&models.ExecutionError{
				NodeID:  node.ID,
				Code:    errorCode(err),
				Message: err.Error(),
			})

			e.logger.ErrorContext(ctx, "Node dispatch failed",
				"execution_id", r.execution.ID, "node_id", node.ID, "error", err)

			return
		}

		r.execCtx.Set(node.ID, result.Output)
		e.recordStep(ctx, r, node.ID, &models.NodeOutput{
			Data:       result.Output,
			Warnings:   result.Warnings,
			FinishedAt: finishedAt,
		})

		if result.Suspend != nil {
			e.suspend(ctx, r, node.ID, *result.Suspend)

			return
		}

		edges := r.definition.OutgoingEdges(node.ID)

		if node.Kind == models.NodeCondition {
			current = e.selectBranch(edges, result.Branch)

			continue
		}

		if len(edges) == 0 {
			return
		}

		// Extra outgoing edges fan out to independent branches.
		for _, edge := range edges[1:] {
			e.spawnBranch(ctx, r, edge.Target)
		}

		current = edges[0].Target
	}
}

// selectBranch picks the outgoing edge whose tag matches the condition
// result. No matching edge means the branch dead-ends silently.
func (e *Engine) selectBranch(edges []*models.Edge, branch *bool) string {
	if branch == nil {
		return ""
	}

	for _, edge := range edges {
		if edge.Branch != nil && *edge.Branch == *branch {
			return edge.Target
		}
	}

	return ""
}

// dispatch runs the node's handler under its kind's wall-clock budget. On
// timeout the handler goroutine is left to finish against its cancelled
// context; its result is discarded.
func (e *Engine) dispatch(ctx context.Context, r *run, node *models.Node) (*protocol.Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "node."+string(node.Kind),
		attribute.String(otelhelper.ExecutionIDKey, r.execution.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
	)
	defer span.End()

	factory, err := e.registry.Factory(node.Kind)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	handler, err := factory.Create(node, e.collaborators)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, factory.Timeout())
	defer cancel()

	type outcome struct {
		result *protocol.Result
		err    error
	}

	outcomes := make(chan outcome, 1)

	go func() {
		result, err := handler.Execute(dispatchCtx, r.execCtx)
		outcomes <- outcome{result: result, err: err}
	}()

	select {
	case o := <-outcomes:
		if o.err != nil {
			otelhelper.SetError(span, o.err)

			return nil, o.err
		}

		return o.result, nil
	case <-dispatchCtx.Done():
		err = fmt.Errorf("node %s exceeded its %s budget: %w", node.ID, factory.Timeout(), dispatchCtx.Err())
		otelhelper.SetError(span, err)

		return nil, err
	}
}

// suspend parks the branch on the delay queue. A queue failure fails the
// branch rather than silently dropping the continuation.
func (e *Engine) suspend(ctx context.Context, r *run, nodeID string, wait time.Duration) {
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()

	err := e.delays.Schedule(ctx, delayqueue.Entry{
		ExecutionID: r.execution.ID,
		NodeID:      nodeID,
		WakeAt:      time.Now().UTC().Add(wait),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to schedule delay wake",
			"execution_id", r.execution.ID, "node_id", nodeID, "error", err)

		r.fail(&models.ExecutionError{
			NodeID:  nodeID,
			Code:    models.ErrorCodeActionDispatch,
			Message: fmt.Sprintf("failed to schedule delay wake: %v", err),
		})

		e.finishBranch(ctx, r)

		return
	}

	e.logger.InfoContext(ctx, "Branch suspended",
		"execution_id", r.execution.ID, "node_id", nodeID, "wait", wait)
}

func (e *Engine) recordStep(ctx context.Context, r *run, nodeID string, output *models.NodeOutput) {
	if err := e.records.RecordStep(ctx, r.execution.ID, nodeID, output); err != nil {
		e.logger.ErrorContext(ctx, "Failed to record step",
			"execution_id", r.execution.ID, "node_id", nodeID, "error", err)
	}
}

// finishBranch releases one pending slot and finalizes the record once the
// last branch or wake has finished.
func (e *Engine) finishBranch(ctx context.Context, r *run) {
	r.mu.Lock()
	r.pending--

	if r.pending > 0 {
		r.mu.Unlock()

		return
	}

	failure := r.failure
	cancelled := r.cancelled
	r.mu.Unlock()

	e.mu.Lock()
	delete(e.runs, r.execution.ID)
	e.mu.Unlock()

	status := models.ExecutionStatusSucceeded

	switch {
	case cancelled:
		status = models.ExecutionStatusFailed
		failure = &models.ExecutionError{
			Code:    models.ErrorCodeCancelled,
			Message: "execution cancelled by operator",
		}
	case failure != nil:
		status = models.ExecutionStatusFailed
	}

	if err := e.records.Finalize(ctx, r.execution, status, failure); err != nil {
		// The record stays running; the stale sweep will reconcile it.
		e.logger.ErrorContext(ctx, "Failed to finalize execution",
			"execution_id", r.execution.ID, "error", err)
	}

	e.logger.InfoContext(ctx, "Execution finished",
		"execution_id", r.execution.ID, "status", status)

	close(r.done)
}

// snapshot reloads the record so callers see terminal state when the run
// finished synchronously.
func (e *Engine) snapshot(ctx context.Context, r *run) (*models.WorkflowExecution, error) {
	execution, err := e.records.executions.GetByID(ctx, r.execution.ID)
	if err != nil {
		return r.execution, nil
	}

	return execution, err
}

func errorCode(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorCodeTimeout
	}

	return models.ErrorCodeActionDispatch
}
