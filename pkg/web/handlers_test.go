package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/delayqueue"
	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence/file"
	"github.com/relaycrm/relay/pkg/protocol"
	"github.com/relaycrm/relay/pkg/registry"
	"github.com/relaycrm/relay/pkg/services"
	"github.com/relaycrm/relay/pkg/web"
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

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
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

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(store, reg),
		services.NewExecution(store, eng),
		reg,
	)

	app := fiber.New()
	handlers.Register(app)

	return app, store
}

func validCreateRequest() web.CreateWorkflowRequest {
	isPositive := true

	return web.CreateWorkflowRequest{
		TenantID: "acme",
		Name:     "Inbound triage",
		Trigger:  models.TriggerEmailReceived,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeTrigger, Config: &models.TriggerNodeConfig{}},
			{ID: "classify", Kind: models.NodeAIClassify, Config: &models.ClassifyConfig{Input: "{{trigger.subject}}"}},
			{ID: "check", Kind: models.NodeCondition, Config: &models.ConditionConfig{
				Field:    "{{classify.classification}}",
				Operator: models.OperatorEquals,
				Value:    "Lead Inquiry",
			}},
			{ID: "lead", Kind: models.NodeCreateLead, Config: &models.CreateLeadConfig{Title: "{{trigger.subject}}"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "classify"},
			{ID: "e2", Source: "classify", Target: "check"},
			{ID: "e3", Source: "check", Target: "lead", Branch: &isPositive},
		},
		IsActive: true,
	}
}

func doJSON(t *testing.T, app *fiber.App, method, url string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createWorkflow(t *testing.T, app *fiber.App, req web.CreateWorkflowRequest) models.WorkflowDefinition {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/workflows", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.WorkflowDefinition
	decodeBody(t, resp, &created)

	return created
}

func TestCreateWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(*web.CreateWorkflowRequest)
		rawBody        string
		expectedStatus int
	}{
		{
			name:           "successful creation",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing tenant",
			mutate:         func(r *web.CreateWorkflowRequest) { r.TenantID = "" },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "two trigger nodes",
			mutate: func(r *web.CreateWorkflowRequest) {
				r.Nodes = append(r.Nodes, &models.Node{
					ID: "second", Kind: models.NodeTrigger, Config: &models.TriggerNodeConfig{},
				})
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "invalid JSON",
			rawBody:        "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := setupTestApp(t)

			var resp *http.Response

			if tt.rawBody != "" {
				req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBufferString(tt.rawBody))
				req.Header.Set("Content-Type", "application/json")

				var err error
				resp, err = app.Test(req)
				require.NoError(t, err)
			} else {
				body := validCreateRequest()
				if tt.mutate != nil {
					tt.mutate(&body)
				}

				resp = doJSON(t, app, http.MethodPost, "/workflows", body)
			}

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var created models.WorkflowDefinition
				decodeBody(t, resp, &created)
				assert.NotEmpty(t, created.ID)
				assert.Equal(t, "Inbound triage", created.Name)
				assert.Len(t, created.Nodes, 4)
			}
		})
	}
}

func TestCreateWorkflowReportsAllGraphProblems(t *testing.T) {
	app, _ := setupTestApp(t)

	body := validCreateRequest()
	body.Nodes = append(body.Nodes, &models.Node{
		ID: "second", Kind: models.NodeTrigger, Config: &models.TriggerNodeConfig{},
	})
	body.Edges = append(body.Edges, &models.Edge{
		ID: "e4", Source: "lead", Target: "ghost",
	})

	resp := doJSON(t, app, http.MethodPost, "/workflows", body)

	var problem struct {
		Type     string   `json:"type"`
		Status   int      `json:"status"`
		Problems []string `json:"problems"`
	}
	decodeBody(t, resp, &problem)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "definition_invalid", problem.Type)
	assert.GreaterOrEqual(t, len(problem.Problems), 2)
}

func TestGetWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createWorkflow(t, app, validCreateRequest())

	resp := doJSON(t, app, http.MethodGet, "/workflows/"+created.ID, nil)

	var fetched models.WorkflowDefinition
	decodeBody(t, resp, &fetched)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Len(t, fetched.Edges, 3)

	resp = doJSON(t, app, http.MethodGet, "/workflows/missing", nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflowsFiltersByTenant(t *testing.T) {
	app, _ := setupTestApp(t)

	createWorkflow(t, app, validCreateRequest())

	other := validCreateRequest()
	other.TenantID = "globex"
	other.Name = "Globex triage"
	createWorkflow(t, app, other)

	resp := doJSON(t, app, http.MethodGet, "/workflows?tenant_id=acme", nil)

	var listing struct {
		Workflows  []models.WorkflowDefinition `json:"workflows"`
		TotalCount int                         `json:"total_count"`
	}
	decodeBody(t, resp, &listing)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listing.Workflows, 1)
	assert.Equal(t, "Inbound triage", listing.Workflows[0].Name)
	assert.Equal(t, 1, listing.TotalCount)

	// tenant_id is mandatory, listing is always scoped.
	resp = doJSON(t, app, http.MethodGet, "/workflows", nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createWorkflow(t, app, validCreateRequest())

	update := web.UpdateWorkflowRequest{
		Name:    "Renamed triage",
		Trigger: models.TriggerEmailReceived,
		Nodes: []*models.Node{
			{ID: "start", Kind: models.NodeTrigger, Config: &models.TriggerNodeConfig{}},
			{ID: "summarize", Kind: models.NodeAISummarize, Config: &models.SummarizeConfig{Input: "{{trigger.body}}"}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "start", Target: "summarize"},
		},
	}

	resp := doJSON(t, app, http.MethodPut, "/workflows/"+created.ID, update)

	var updated models.WorkflowDefinition
	decodeBody(t, resp, &updated)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Renamed triage", updated.Name)
	assert.Len(t, updated.Nodes, 2)

	resp = doJSON(t, app, http.MethodPut, "/workflows/missing", update)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createWorkflow(t, app, validCreateRequest())

	resp := doJSON(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/workflows/"+created.ID, nil)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActivateDeactivateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	req := validCreateRequest()
	req.IsActive = false
	created := createWorkflow(t, app, req)

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/activate", nil)

	var updated models.WorkflowDefinition
	decodeBody(t, resp, &updated)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, updated.IsActive)

	resp = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/deactivate", nil)
	decodeBody(t, resp, &updated)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, updated.IsActive)
}

func TestExecuteWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createWorkflow(t, app, validCreateRequest())

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/execute", web.ExecuteWorkflowRequest{
		Payload: map[string]any{"subject": "Demo request"},
	})

	var execution models.WorkflowExecution
	decodeBody(t, resp, &execution)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.ExecutionStatusSucceeded, execution.Status)
	assert.Contains(t, execution.NodeOutputs, "lead")

	resp = doJSON(t, app, http.MethodPost, "/workflows/missing/execute", nil)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflowExecutions(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createWorkflow(t, app, validCreateRequest())

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/execute", web.ExecuteWorkflowRequest{
		Payload: map[string]any{"subject": "one"},
	})
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/workflows/"+created.ID+"/executions", nil)

	var listing struct {
		Executions []models.WorkflowExecution `json:"executions"`
		TotalCount int                        `json:"total_count"`
	}
	decodeBody(t, resp, &listing)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listing.Executions, 1)
	assert.Equal(t, created.ID, listing.Executions[0].WorkflowID)

	resp = doJSON(t, app, http.MethodGet, "/workflows/missing/executions", nil)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetExecution(t *testing.T) {
	app, _ := setupTestApp(t)
	created := createWorkflow(t, app, validCreateRequest())

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/execute", web.ExecuteWorkflowRequest{
		Payload: map[string]any{"subject": "one"},
	})

	var execution models.WorkflowExecution
	decodeBody(t, resp, &execution)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/executions/"+execution.ID, nil)

	var fetched models.WorkflowExecution
	decodeBody(t, resp, &fetched)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, execution.ID, fetched.ID)

	resp = doJSON(t, app, http.MethodGet, "/executions/missing", nil)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelExecution(t *testing.T) {
	app, store := setupTestApp(t)
	created := createWorkflow(t, app, validCreateRequest())

	resp := doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/execute", web.ExecuteWorkflowRequest{
		Payload: map[string]any{"subject": "one"},
	})

	var execution models.WorkflowExecution
	decodeBody(t, resp, &execution)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The manual run already finished, a cancel is a conflict.
	resp = doJSON(t, app, http.MethodPost, "/executions/"+execution.ID+"/cancel", nil)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/executions/missing/cancel", nil)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Sanity check the record stayed terminal.
	stored, err := store.ExecutionRepository().GetByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSucceeded, stored.Status)
}

func TestTemplateCatalog(t *testing.T) {
	app, store := setupTestApp(t)

	template := &models.WorkflowTemplate{
		ID:          "tpl-triage",
		Category:    "inbox",
		Name:        "Email triage",
		Description: "Classify, branch, open lead",
		Trigger:     models.TriggerEmailReceived,
		Steps: []models.TemplateStep{
			{Kind: models.NodeAIClassify, Description: "Classify intent", Config: &models.ClassifyConfig{Input: "{{trigger.body}}"}},
			{Kind: models.NodeCreateLead, Description: "Open lead", Config: &models.CreateLeadConfig{Title: "{{trigger.subject}}"}},
		},
	}
	require.NoError(t, store.TemplateRepository().Save(context.Background(), template))

	resp := doJSON(t, app, http.MethodGet, "/templates", nil)

	var listing struct {
		Templates  []models.WorkflowTemplate `json:"templates"`
		TotalCount int                       `json:"total_count"`
	}
	decodeBody(t, resp, &listing)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listing.Templates, 1)
	assert.Equal(t, "Email triage", listing.Templates[0].Name)

	resp = doJSON(t, app, http.MethodPost, "/templates/tpl-triage/clone", web.CloneTemplateRequest{TenantID: "acme"})

	var clone models.WorkflowDefinition
	decodeBody(t, resp, &clone)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Email triage", clone.Name)
	assert.Equal(t, "acme", clone.TenantID)
	assert.False(t, clone.IsActive)
	assert.Len(t, clone.Nodes, 3)

	resp = doJSON(t, app, http.MethodPost, "/templates/missing/clone", web.CloneTemplateRequest{TenantID: "acme"})
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/templates/tpl-triage/clone", web.CloneTemplateRequest{})
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)

	var health struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	decodeBody(t, resp, &health)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
	assert.False(t, health.Timestamp.IsZero())
}
