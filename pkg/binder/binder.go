// Package binder subscribes workflow definitions to the business events
// and schedules that trigger them. It matches incoming events against
// active definitions, shapes the trigger payload and submits each matching
// run to the engine's worker pool fire-and-forget.
package binder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/eventbus"
	"github.com/relaycrm/relay/pkg/events"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// cronConfigKey is the trigger config entry holding the schedule of a
// scheduled-trigger definition.
const cronConfigKey = "cron"

// Binder wires business events and cron schedules to workflow runs.
type Binder struct {
	logger    *slog.Logger
	workflows persistence.WorkflowRepository
	engine    *engine.Engine
	pool      *engine.WorkerPool

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewBinder(logger *slog.Logger, workflows persistence.WorkflowRepository, eng *engine.Engine, pool *engine.WorkerPool) *Binder {
	return &Binder{
		logger:    logger.With("module", "binder"),
		workflows: workflows,
		engine:    eng,
		pool:      pool,
		cron:      cron.New(),
		entries:   make(map[string]cron.EntryID),
	}
}

// RegisterHandlers subscribes the binder to the business event types it
// reacts to. Must be called before the bus starts consuming.
func (b *Binder) RegisterHandlers(bus eventbus.EventSubscriber) error {
	if err := bus.Handle(events.EmailReceivedEvent, b.onEmailReceived); err != nil {
		return err
	}

	return bus.Handle(events.LeadCreatedEvent, b.onLeadCreated)
}

func (b *Binder) onEmailReceived(ctx context.Context, event any) error {
	email, ok := event.(*events.EmailReceived)
	if !ok {
		return fmt.Errorf("unexpected event payload %T for %s", event, events.EmailReceivedEvent)
	}

	return b.bindEvent(ctx, models.TriggerEmailReceived, email.TenantID, email.TriggerPayload(), func(definition *models.WorkflowDefinition) bool {
		mailbox, ok := definition.TriggerConfig["mailbox"].(string)

		return !ok || mailbox == "" || mailbox == email.Mailbox
	})
}

func (b *Binder) onLeadCreated(ctx context.Context, event any) error {
	lead, ok := event.(*events.LeadCreated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T for %s", event, events.LeadCreatedEvent)
	}

	return b.bindEvent(ctx, models.TriggerLeadCreated, lead.TenantID, lead.TriggerPayload(), func(definition *models.WorkflowDefinition) bool {
		source, ok := definition.TriggerConfig["source"].(string)

		return !ok || source == "" || source == lead.Source
	})
}

// bindEvent selects matching active definitions and submits one run per
// match. Submission blocks only while the pool queue is full; run outcomes
// never propagate back to the event source.
func (b *Binder) bindEvent(ctx context.Context, trigger models.TriggerKind, tenantID string, payload map[string]any, matches func(*models.WorkflowDefinition) bool) error {
	definitions, err := b.workflows.List(ctx, persistence.ListWorkflowsOptions{
		TenantID:   tenantID,
		Trigger:    trigger,
		ActiveOnly: true,
	})
	if err != nil {
		return fmt.Errorf("failed to list definitions for trigger %s: %w", trigger, err)
	}

	for _, definition := range definitions {
		if definition.IsTemplate || !matches(definition) {
			continue
		}

		b.submit(ctx, definition, payload)
	}

	return nil
}

func (b *Binder) submit(ctx context.Context, definition *models.WorkflowDefinition, payload map[string]any) {
	workflowID := definition.ID

	err := b.pool.Submit(ctx, func(taskCtx context.Context) {
		if _, err := b.engine.Run(taskCtx, definition, payload); err != nil {
			b.logger.ErrorContext(taskCtx, "Triggered run failed to start",
				"workflow_id", workflowID, "error", err)
		}
	})
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to submit triggered run",
			"workflow_id", workflowID, "error", err)

		return
	}

	b.logger.InfoContext(ctx, "Submitted triggered run",
		"workflow_id", workflowID, "trigger", definition.Trigger)
}

// StartScheduler starts the cron runner and keeps scheduled-trigger
// definitions in sync at the given refresh cadence.
func (b *Binder) StartScheduler(ctx context.Context, refreshInterval time.Duration) error {
	if err := b.RefreshSchedules(ctx); err != nil {
		return err
	}

	b.cron.Start()

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				stopCtx := b.cron.Stop()
				<-stopCtx.Done()

				return
			case <-ticker.C:
				if err := b.RefreshSchedules(ctx); err != nil {
					b.logger.ErrorContext(ctx, "Schedule refresh failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// RefreshSchedules reconciles cron entries with the current set of active
// scheduled-trigger definitions.
func (b *Binder) RefreshSchedules(ctx context.Context) error {
	definitions, err := b.workflows.List(ctx, persistence.ListWorkflowsOptions{
		Trigger:    models.TriggerScheduled,
		ActiveOnly: true,
	})
	if err != nil {
		return fmt.Errorf("failed to list scheduled definitions: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool, len(definitions))

	for _, definition := range definitions {
		if definition.IsTemplate {
			continue
		}

		expression, ok := definition.TriggerConfig[cronConfigKey].(string)
		if !ok || expression == "" {
			b.logger.WarnContext(ctx, "Scheduled definition has no cron expression",
				"workflow_id", definition.ID)

			continue
		}

		seen[definition.ID] = true

		if _, scheduled := b.entries[definition.ID]; scheduled {
			continue
		}

		workflowID := definition.ID

		entryID, err := b.cron.AddFunc(expression, func() {
			// Reload at fire time so an edit between refreshes applies to
			// the next tick, not a stale snapshot.
			current, err := b.workflows.GetByID(ctx, workflowID)
			if err != nil || !current.IsActive {
				return
			}

			b.submit(ctx, current, map[string]any{
				"scheduledAt": time.Now().UTC().Format(time.RFC3339),
				"cron":        expression,
			})
		})
		if err != nil {
			b.logger.ErrorContext(ctx, "Invalid cron expression",
				"workflow_id", definition.ID, "cron", expression, "error", err)

			continue
		}

		b.entries[definition.ID] = entryID
		b.logger.InfoContext(ctx, "Scheduled workflow",
			"workflow_id", definition.ID, "cron", expression)
	}

	// Drop schedules for definitions deactivated or deleted since the
	// last refresh.
	for workflowID, entryID := range b.entries {
		if !seen[workflowID] {
			b.cron.Remove(entryID)
			delete(b.entries, workflowID)
			b.logger.InfoContext(ctx, "Unscheduled workflow", "workflow_id", workflowID)
		}
	}

	return nil
}
