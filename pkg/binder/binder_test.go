package binder

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/delayqueue"
	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/events"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence/file"
	"github.com/relaycrm/relay/pkg/protocol"
	"github.com/relaycrm/relay/pkg/registry"
)

type stubAI struct{}

func (stubAI) Classify(context.Context, string, []string) (*protocol.Classification, error) {
	return &protocol.Classification{Classification: "Lead Inquiry", Confidence: 0.9}, nil
}

func (stubAI) Summarize(_ context.Context, text string) (*protocol.Summary, error) {
	return &protocol.Summary{Summary: text}, nil
}

func (stubAI) GenerateReply(context.Context, string, string, string) (*protocol.Reply, error) {
	return &protocol.Reply{Reply: "ok"}, nil
}

type stubCRM struct{}

func (stubCRM) CreateLead(_ context.Context, _ string, fields protocol.LeadFields) (*protocol.Lead, error) {
	return &protocol.Lead{ID: "lead-1", Title: fields.Title}, nil
}

func (stubCRM) CreateActivity(_ context.Context, _ string, fields protocol.ActivityFields) (*protocol.Activity, error) {
	return &protocol.Activity{ID: "activity-1", Subject: fields.Subject}, nil
}

type stubNotifier struct{}

func (stubNotifier) Send(context.Context, string, string, string) (string, error) {
	return "ack", nil
}

func newTestBinder(t *testing.T) (*Binder, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults()

	records := engine.NewRecordManager(logger, store.ExecutionRepository(), nil)
	eng := engine.NewEngine(logger, reg, records, protocol.Collaborators{
		AI:       stubAI{},
		CRM:      stubCRM{},
		Notifier: stubNotifier{},
	}, delayqueue.NewMemoryQueue())

	pool := engine.NewWorkerPool(context.Background(), logger, 4, 16)
	t.Cleanup(pool.Shutdown)

	return NewBinder(logger, store.WorkflowRepository(), eng, pool), store
}

func summarizeDefinition(id, tenantID string, trigger models.TriggerKind, triggerConfig map[string]any) *models.WorkflowDefinition {
	now := time.Now().UTC()

	return &models.WorkflowDefinition{
		ID:            id,
		TenantID:      tenantID,
		Name:          "Summarize " + id,
		Trigger:       trigger,
		TriggerConfig: triggerConfig,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeTrigger, Config: &models.TriggerNodeConfig{}},
			{ID: "summarize", Kind: models.NodeAISummarize, Config: &models.SummarizeConfig{Input: "{{trigger.subject}}"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "summarize"},
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func waitForExecutions(t *testing.T, store *file.Persistence, workflowID string, want int) []*models.WorkflowExecution {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		executions, err := store.ExecutionRepository().ListByWorkflow(context.Background(), workflowID)
		require.NoError(t, err)

		terminal := 0

		for _, execution := range executions {
			if execution.Terminal() {
				terminal++
			}
		}

		if terminal >= want {
			return executions
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("workflow %s did not reach %d terminal executions", workflowID, want)

	return nil
}

func emailEvent(tenantID, mailbox, subject string) *events.EmailReceived {
	return &events.EmailReceived{
		BaseEvent: events.BaseEvent{
			ID:        "evt-1",
			Type:      events.EmailReceivedEvent,
			TenantID:  tenantID,
			Timestamp: time.Now().UTC(),
		},
		Mailbox: mailbox,
		From:    "buyer@example.com",
		Subject: subject,
		Body:    "We would like a demo",
	}
}

func TestOnEmailReceivedRunsMatchingDefinitions(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()

	require.NoError(t, store.WorkflowRepository().Save(ctx, summarizeDefinition("wf-any", "acme", models.TriggerEmailReceived, nil)))
	require.NoError(t, store.WorkflowRepository().Save(ctx, summarizeDefinition("wf-sales", "acme", models.TriggerEmailReceived, map[string]any{"mailbox": "sales@acme.test"})))
	require.NoError(t, store.WorkflowRepository().Save(ctx, summarizeDefinition("wf-support", "acme", models.TriggerEmailReceived, map[string]any{"mailbox": "support@acme.test"})))

	require.NoError(t, b.onEmailReceived(ctx, emailEvent("acme", "sales@acme.test", "Demo request")))

	executions := waitForExecutions(t, store, "wf-sales", 1)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusSucceeded, executions[0].Status)
	assert.Equal(t, "Demo request", executions[0].NodeOutputs[models.TriggerKey].Data["subject"])

	waitForExecutions(t, store, "wf-any", 1)

	// The mismatched mailbox never fires.
	unmatched, err := store.ExecutionRepository().ListByWorkflow(ctx, "wf-support")
	require.NoError(t, err)
	assert.Empty(t, unmatched)
}

func TestBindEventSkipsInactiveTemplatesAndOtherTenants(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()

	inactive := summarizeDefinition("wf-inactive", "acme", models.TriggerEmailReceived, nil)
	inactive.IsActive = false
	require.NoError(t, store.WorkflowRepository().Save(ctx, inactive))

	template := summarizeDefinition("wf-template", "acme", models.TriggerEmailReceived, nil)
	template.IsTemplate = true
	require.NoError(t, store.WorkflowRepository().Save(ctx, template))

	otherTenant := summarizeDefinition("wf-globex", "globex", models.TriggerEmailReceived, nil)
	require.NoError(t, store.WorkflowRepository().Save(ctx, otherTenant))

	require.NoError(t, b.onEmailReceived(ctx, emailEvent("acme", "sales@acme.test", "Hello")))

	time.Sleep(100 * time.Millisecond)

	for _, id := range []string{"wf-inactive", "wf-template", "wf-globex"} {
		executions, err := store.ExecutionRepository().ListByWorkflow(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, executions, "workflow %s must not run", id)
	}
}

func TestOnLeadCreatedFiltersBySource(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()

	leadDef := summarizeDefinition("wf-lead", "acme", models.TriggerLeadCreated, map[string]any{"source": "webform"})
	leadDef.Nodes[1].Config = &models.SummarizeConfig{Input: "{{trigger.title}}"}
	require.NoError(t, store.WorkflowRepository().Save(ctx, leadDef))

	event := &events.LeadCreated{
		BaseEvent: events.BaseEvent{
			ID:        "evt-2",
			Type:      events.LeadCreatedEvent,
			TenantID:  "acme",
			Timestamp: time.Now().UTC(),
		},
		LeadID: "lead-9",
		Title:  "Demo request",
		Source: "webform",
	}
	require.NoError(t, b.onLeadCreated(ctx, event))

	executions := waitForExecutions(t, store, "wf-lead", 1)
	assert.Equal(t, models.ExecutionStatusSucceeded, executions[0].Status)

	// A different source does not fire.
	event.Source = "import"
	require.NoError(t, b.onLeadCreated(ctx, event))
	time.Sleep(100 * time.Millisecond)

	executions, err := store.ExecutionRepository().ListByWorkflow(ctx, "wf-lead")
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestRefreshSchedulesReconcilesEntries(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()

	scheduled := summarizeDefinition("wf-cron", "acme", models.TriggerScheduled, map[string]any{"cron": "@every 1h"})
	require.NoError(t, store.WorkflowRepository().Save(ctx, scheduled))

	require.NoError(t, b.RefreshSchedules(ctx))
	assert.Contains(t, b.entries, "wf-cron")

	// A second refresh is idempotent.
	require.NoError(t, b.RefreshSchedules(ctx))
	assert.Len(t, b.entries, 1)

	// Deactivating drops the entry.
	scheduled.IsActive = false
	require.NoError(t, store.WorkflowRepository().Save(ctx, scheduled))
	require.NoError(t, b.RefreshSchedules(ctx))
	assert.NotContains(t, b.entries, "wf-cron")
}

func TestRefreshSchedulesIgnoresBadCron(t *testing.T) {
	b, store := newTestBinder(t)
	ctx := context.Background()

	bad := summarizeDefinition("wf-bad-cron", "acme", models.TriggerScheduled, map[string]any{"cron": "not a schedule"})
	require.NoError(t, store.WorkflowRepository().Save(ctx, bad))

	missing := summarizeDefinition("wf-no-cron", "acme", models.TriggerScheduled, nil)
	require.NoError(t, store.WorkflowRepository().Save(ctx, missing))

	require.NoError(t, b.RefreshSchedules(ctx))
	assert.Empty(t, b.entries)
}

func TestOnEmailReceivedRejectsWrongPayloadType(t *testing.T) {
	b, _ := newTestBinder(t)

	err := b.onEmailReceived(context.Background(), &events.LeadCreated{})
	require.Error(t, err)

	err = b.onLeadCreated(context.Background(), &events.EmailReceived{})
	require.Error(t, err)
}
