package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
)

type stubStore struct {
	lead     *protocol.Lead
	activity *protocol.Activity
	err      error

	lastTenant   string
	leadFields   protocol.LeadFields
	activityArgs protocol.ActivityFields
}

func (s *stubStore) CreateLead(_ context.Context, tenantID string, fields protocol.LeadFields) (*protocol.Lead, error) {
	s.lastTenant = tenantID
	s.leadFields = fields

	return s.lead, s.err
}

func (s *stubStore) CreateActivity(_ context.Context, tenantID string, fields protocol.ActivityFields) (*protocol.Activity, error) {
	s.lastTenant = tenantID
	s.activityArgs = fields

	return s.activity, s.err
}

func execContext() *models.ExecutionContext {
	execCtx := models.NewExecutionContext("exec-1", "wf-1", "acme", map[string]any{
		"subject":   "Demo request",
		"contactId": "contact-7",
	})
	execCtx.Set("classify", map[string]any{"classification": "Lead Inquiry"})

	return execCtx
}

func TestCreateLeadResolvesFields(t *testing.T) {
	store := &stubStore{lead: &protocol.Lead{ID: "lead-1", Title: "Demo request", ContactID: "contact-7"}}

	node := &models.Node{ID: "lead", Kind: models.NodeCreateLead, Config: &models.CreateLeadConfig{
		Title:       "{{trigger.subject}}",
		Description: "Intent: {{classify.classification}}",
		ContactID:   "{{trigger.contactId}}",
		Source:      "workflow",
	}}

	handler, err := NewCreateLeadFactory().Create(node, protocol.Collaborators{CRM: store})
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, "acme", store.lastTenant)
	assert.Equal(t, "Demo request", store.leadFields.Title)
	assert.Equal(t, "Intent: Lead Inquiry", store.leadFields.Description)
	assert.Equal(t, "contact-7", store.leadFields.ContactID)
	assert.Equal(t, "workflow", store.leadFields.Source)
	assert.Equal(t, "lead-1", result.Output["leadId"])
	assert.Empty(t, result.Warnings)
}

func TestCreateLeadWarnsOnUnresolvedPlaceholder(t *testing.T) {
	store := &stubStore{lead: &protocol.Lead{ID: "lead-1"}}

	node := &models.Node{ID: "lead", Kind: models.NodeCreateLead, Config: &models.CreateLeadConfig{
		Title: "{{summarize.summary}}",
	}}

	handler, err := NewCreateLeadFactory().Create(node, protocol.Collaborators{CRM: store})
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "summarize.summary")
}

func TestCreateLeadPropagatesStoreError(t *testing.T) {
	store := &stubStore{err: errors.New("store unavailable")}

	node := &models.Node{ID: "lead", Kind: models.NodeCreateLead, Config: &models.CreateLeadConfig{
		Title: "{{trigger.subject}}",
	}}

	handler, err := NewCreateLeadFactory().Create(node, protocol.Collaborators{CRM: store})
	require.NoError(t, err)

	_, err = handler.Execute(context.Background(), execContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestCreateActivitySetsDueDate(t *testing.T) {
	dueAt := time.Now().UTC().AddDate(0, 0, 3)
	store := &stubStore{activity: &protocol.Activity{ID: "activity-1", Subject: "Follow up", DueAt: &dueAt}}

	node := &models.Node{ID: "task", Kind: models.NodeCreateActivity, Config: &models.CreateActivityConfig{
		Subject:      "Follow up: {{trigger.subject}}",
		ActivityType: "task",
		DueInDays:    3,
	}}

	handler, err := NewCreateActivityFactory().Create(node, protocol.Collaborators{CRM: store})
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, "Follow up: Demo request", store.activityArgs.Subject)
	assert.Equal(t, "task", store.activityArgs.ActivityType)
	require.NotNil(t, store.activityArgs.DueAt)
	assert.WithinDuration(t, dueAt, *store.activityArgs.DueAt, time.Minute)
	assert.Equal(t, "activity-1", result.Output["activityId"])
	assert.NotEmpty(t, result.Output["dueAt"])
}

func TestCreateActivityWithoutDueDate(t *testing.T) {
	store := &stubStore{activity: &protocol.Activity{ID: "activity-2", Subject: "Log call"}}

	node := &models.Node{ID: "task", Kind: models.NodeCreateActivity, Config: &models.CreateActivityConfig{
		Subject: "Log call",
	}}

	handler, err := NewCreateActivityFactory().Create(node, protocol.Collaborators{CRM: store})
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Nil(t, store.activityArgs.DueAt)
	assert.NotContains(t, result.Output, "dueAt")
}
