// Package record provides the handlers that create CRM records: leads and
// activities.
package record

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
	"github.com/relaycrm/relay/pkg/template"
)

const recordTimeout = 10 * time.Second

// CreateLeadFactory builds create_lead handlers.
type CreateLeadFactory struct{}

func NewCreateLeadFactory() *CreateLeadFactory {
	return &CreateLeadFactory{}
}

func (*CreateLeadFactory) Kind() models.NodeKind {
	return models.NodeCreateLead
}

func (*CreateLeadFactory) Create(node *models.Node, collaborators protocol.Collaborators) (protocol.Handler, error) {
	config, ok := node.Config.(*models.CreateLeadConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: expected create-lead config, got %T", node.ID, node.Config)
	}

	return &createLeadHandler{config: config, store: collaborators.CRM}, nil
}

func (*CreateLeadFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "examples": []string{"{{trigger.subject}}"}},
			"description": map[string]any{"type": "string"},
			"contact_id":  map[string]any{"type": "string", "examples": []string{"{{trigger.contactId}}"}},
			"company_id":  map[string]any{"type": "string"},
			"source":      map[string]any{"type": "string"},
		},
		"required": []string{"title"},
	}
}

func (*CreateLeadFactory) Timeout() time.Duration {
	return recordTimeout
}

type createLeadHandler struct {
	config *models.CreateLeadConfig
	store  protocol.CRMStore
}

func (h *createLeadHandler) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Result, error) {
	var warnings []string

	resolve := func(input string) string {
		resolved, unresolved := template.Resolve(input, executionCtx)
		for _, path := range unresolved {
			warnings = append(warnings, fmt.Sprintf("unresolved placeholder %q", path))
		}

		return resolved
	}

	fields := protocol.LeadFields{
		Title:       resolve(h.config.Title),
		Description: resolve(h.config.Description),
		ContactID:   resolve(h.config.ContactID),
		CompanyID:   resolve(h.config.CompanyID),
		Source:      resolve(h.config.Source),
	}

	lead, err := h.store.CreateLead(ctx, executionCtx.TenantID, fields)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}

	return &protocol.Result{
		Output: map[string]any{
			"leadId":    lead.ID,
			"title":     lead.Title,
			"contactId": lead.ContactID,
			"source":    lead.Source,
		},
		Warnings: warnings,
	}, nil
}

// CreateActivityFactory builds create_activity handlers.
type CreateActivityFactory struct{}

func NewCreateActivityFactory() *CreateActivityFactory {
	return &CreateActivityFactory{}
}

func (*CreateActivityFactory) Kind() models.NodeKind {
	return models.NodeCreateActivity
}

func (*CreateActivityFactory) Create(node *models.Node, collaborators protocol.Collaborators) (protocol.Handler, error) {
	config, ok := node.Config.(*models.CreateActivityConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: expected create-activity config, got %T", node.ID, node.Config)
	}

	return &createActivityHandler{config: config, store: collaborators.CRM}, nil
}

func (*CreateActivityFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject":       map[string]any{"type": "string"},
			"activity_type": map[string]any{"type": "string", "examples": []string{"call", "meeting", "task"}},
			"notes":         map[string]any{"type": "string"},
			"contact_id":    map[string]any{"type": "string"},
			"due_in_days":   map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"subject"},
	}
}

func (*CreateActivityFactory) Timeout() time.Duration {
	return recordTimeout
}

type createActivityHandler struct {
	config *models.CreateActivityConfig
	store  protocol.CRMStore
}

func (h *createActivityHandler) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Result, error) {
	var warnings []string

	resolve := func(input string) string {
		resolved, unresolved := template.Resolve(input, executionCtx)
		for _, path := range unresolved {
			warnings = append(warnings, fmt.Sprintf("unresolved placeholder %q", path))
		}

		return resolved
	}

	fields := protocol.ActivityFields{
		Subject:      resolve(h.config.Subject),
		ActivityType: h.config.ActivityType,
		Notes:        resolve(h.config.Notes),
		ContactID:    resolve(h.config.ContactID),
	}

	if h.config.DueInDays > 0 {
		dueAt := time.Now().UTC().AddDate(0, 0, h.config.DueInDays)
		fields.DueAt = &dueAt
	}

	activity, err := h.store.CreateActivity(ctx, executionCtx.TenantID, fields)
	if err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}

	output := map[string]any{
		"activityId": activity.ID,
		"subject":    activity.Subject,
	}
	if activity.DueAt != nil {
		output["dueAt"] = activity.DueAt.Format(time.RFC3339)
	}

	return &protocol.Result{Output: output, Warnings: warnings}, nil
}
