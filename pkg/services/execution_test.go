package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/delayqueue"
	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence/file"
	"github.com/relaycrm/relay/pkg/protocol"
	"github.com/relaycrm/relay/pkg/registry"
)

type echoAI struct{}

func (echoAI) Classify(context.Context, string, []string) (*protocol.Classification, error) {
	return &protocol.Classification{Classification: "Lead Inquiry", Confidence: 0.9}, nil
}

func (echoAI) Summarize(_ context.Context, text string) (*protocol.Summary, error) {
	return &protocol.Summary{Summary: text}, nil
}

func (echoAI) GenerateReply(context.Context, string, string, string) (*protocol.Reply, error) {
	return &protocol.Reply{Reply: "ok"}, nil
}

type echoCRM struct{}

func (echoCRM) CreateLead(_ context.Context, _ string, fields protocol.LeadFields) (*protocol.Lead, error) {
	return &protocol.Lead{ID: "lead-1", Title: fields.Title}, nil
}

func (echoCRM) CreateActivity(_ context.Context, _ string, fields protocol.ActivityFields) (*protocol.Activity, error) {
	return &protocol.Activity{ID: "activity-1", Subject: fields.Subject}, nil
}

type echoNotifier struct{}

func (echoNotifier) Send(context.Context, string, string, string) (string, error) {
	return "ack", nil
}

func newExecutionService(t *testing.T) (*Execution, *Workflow, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults()

	records := engine.NewRecordManager(logger, store.ExecutionRepository(), nil)
	eng := engine.NewEngine(logger, reg, records, protocol.Collaborators{
		AI:       echoAI{},
		CRM:      echoCRM{},
		Notifier: echoNotifier{},
	}, delayqueue.NewMemoryQueue())

	return NewExecution(store, eng), NewWorkflow(store, reg), store
}

func TestExecuteManualRun(t *testing.T) {
	execSvc, wfSvc, _ := newExecutionService(t)
	ctx := context.Background()

	definition, err := wfSvc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	execution, err := execSvc.Execute(ctx, definition.ID, map[string]any{"subject": "Demo request"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSucceeded, execution.Status)
	assert.Contains(t, execution.NodeOutputs, "lead")

	// Inactive definitions can still be test-run manually.
	_, err = wfSvc.SetActive(ctx, definition.ID, false)
	require.NoError(t, err)

	execution, err = execSvc.Execute(ctx, definition.ID, map[string]any{"subject": "Second run"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSucceeded, execution.Status)
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	execSvc, _, _ := newExecutionService(t)

	_, err := execSvc.Execute(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestListRequiresExistingWorkflow(t *testing.T) {
	execSvc, wfSvc, _ := newExecutionService(t)
	ctx := context.Background()

	definition, err := wfSvc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = execSvc.Execute(ctx, definition.ID, map[string]any{"subject": "one"})
	require.NoError(t, err)

	executions, err := execSvc.List(ctx, definition.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)

	_, err = execSvc.List(ctx, "missing")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestCancelTerminalExecution(t *testing.T) {
	execSvc, _, store := newExecutionService(t)
	ctx := context.Background()

	require.NoError(t, store.ExecutionRepository().Create(ctx, &models.WorkflowExecution{
		ID:         "exec-done",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusSucceeded,
		StartedAt:  time.Now().UTC(),
	}))

	err := execSvc.Cancel(ctx, "exec-done")
	assert.ErrorIs(t, err, ErrExecutionNotRunning)

	err = execSvc.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestCancelOrphanedRunningExecution(t *testing.T) {
	execSvc, _, store := newExecutionService(t)
	ctx := context.Background()

	// Running in the record but unknown to this process's engine.
	require.NoError(t, store.ExecutionRepository().Create(ctx, &models.WorkflowExecution{
		ID:         "exec-orphan",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}))

	err := execSvc.Cancel(ctx, "exec-orphan")
	assert.ErrorIs(t, err, ErrExecutionNotRunning)
}
