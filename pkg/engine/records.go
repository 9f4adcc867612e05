package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/relay/pkg/eventbus"
	"github.com/relaycrm/relay/pkg/events"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// RecordManager owns the lifecycle of execution records: it opens them,
// appends step outputs, finalizes them together with the definition's run
// statistics, and publishes the matching lifecycle events. All writes to a
// given record go through here, serialized by the repository.
type RecordManager struct {
	logger     *slog.Logger
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
}

func NewRecordManager(logger *slog.Logger, executions persistence.ExecutionRepository, publisher eventbus.EventPublisher) *RecordManager {
	return &RecordManager{
		logger:     logger.With("module", "records"),
		executions: executions,
		publisher:  publisher,
	}
}

// Open creates a running execution record seeded with the trigger payload
// and announces it on the bus.
func (rm *RecordManager) Open(ctx context.Context, definition *models.WorkflowDefinition, triggerPayload map[string]any) (*models.WorkflowExecution, error) {
	now := time.Now().UTC()

	execution := &models.WorkflowExecution{
		ID:         uuid.Must(uuid.NewV7()).String(),
		WorkflowID: definition.ID,
		TenantID:   definition.TenantID,
		Status:     models.ExecutionStatusRunning,
		StartedAt:  now,
		NodeOutputs: map[string]*models.NodeOutput{
			models.TriggerKey: {Data: triggerPayload, FinishedAt: now},
		},
	}

	if err := rm.executions.Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to open execution record: %w", err)
	}

	rm.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   rm.baseEvent(events.ExecutionStartedEvent, definition.TenantID),
		ExecutionID: execution.ID,
		WorkflowID:  definition.ID,
	})

	return execution, nil
}

// RecordStep appends one node's output or error to the record.
func (rm *RecordManager) RecordStep(ctx context.Context, executionID, nodeID string, output *models.NodeOutput) error {
	return rm.executions.RecordStep(ctx, executionID, nodeID, output)
}

// Finalize transitions the record to its terminal status, bumps the
// definition's statistics and publishes the closing lifecycle event.
func (rm *RecordManager) Finalize(ctx context.Context, execution *models.WorkflowExecution, status models.ExecutionStatus, execErr *models.ExecutionError) error {
	completedAt := time.Now().UTC()

	err := rm.executions.Finalize(ctx, execution.ID, status, execErr, completedAt)
	if err != nil {
		return fmt.Errorf("failed to finalize execution %s: %w", execution.ID, err)
	}

	duration := completedAt.Sub(execution.StartedAt)

	switch {
	case status == models.ExecutionStatusSucceeded:
		rm.publish(ctx, execution.ID, events.ExecutionCompleted{
			BaseEvent:   rm.baseEvent(events.ExecutionCompletedEvent, execution.TenantID),
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
			Duration:    duration,
		})
	case execErr != nil && execErr.Code == models.ErrorCodeCancelled:
		rm.publish(ctx, execution.ID, events.ExecutionCancelled{
			BaseEvent:   rm.baseEvent(events.ExecutionCancelledEvent, execution.TenantID),
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
		})
	default:
		failed := events.ExecutionFailed{
			BaseEvent:   rm.baseEvent(events.ExecutionFailedEvent, execution.TenantID),
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
			Duration:    duration,
		}
		if execErr != nil {
			failed.NodeID = execErr.NodeID
			failed.Error = execErr.Message
		}

		rm.publish(ctx, execution.ID, failed)
	}

	return nil
}

// SweepStale re-finalizes executions stuck in running past the grace
// period, marking them failed. This reconciles records orphaned by a crash
// between a run and its finalize.
func (rm *RecordManager) SweepStale(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-grace)

	stale, err := rm.executions.ListStaleRunning(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale executions: %w", err)
	}

	swept := 0

	for _, execution := range stale {
		err := rm.Finalize(ctx, execution, models.ExecutionStatusFailed, &models.ExecutionError{
			Code:    models.ErrorCodeStaleExecution,
			Message: fmt.Sprintf("execution still running after %s, assumed lost", grace),
		})
		if err != nil {
			rm.logger.ErrorContext(ctx, "Failed to sweep stale execution",
				"execution_id", execution.ID, "error", err)

			continue
		}

		swept++
	}

	if swept > 0 {
		rm.logger.InfoContext(ctx, "Swept stale executions", "count", swept)
	}

	return swept, nil
}

func (rm *RecordManager) baseEvent(eventType events.EventType, tenantID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
	}
}

// publish failures never fail the run; lifecycle events are observability,
// not state.
func (rm *RecordManager) publish(ctx context.Context, key string, event events.Event) {
	if rm.publisher == nil {
		return
	}

	if err := rm.publisher.Publish(ctx, key, event); err != nil {
		rm.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(), "error", err)
	}
}
