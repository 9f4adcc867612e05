// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/relaycrm/relay/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new
// workflow definition. The full node and edge graph is supplied up front and
// validated before anything is persisted.
type CreateWorkflowRequest struct {
	TenantID      string             `json:"tenant_id"                validate:"required"`
	Name          string             `json:"name"                     validate:"required,max=255"`
	Description   string             `json:"description"              validate:"max=2000"`
	Trigger       models.TriggerKind `json:"trigger"                  validate:"required"`
	TriggerConfig map[string]any     `json:"trigger_config,omitempty"`
	Nodes         []*models.Node     `json:"nodes"                    validate:"required,min=1"`
	Edges         []*models.Edge     `json:"edges"`
	IsActive      bool               `json:"is_active"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow definition. The supplied graph replaces the stored one atomically.
type UpdateWorkflowRequest struct {
	Name          string             `json:"name"                     validate:"required,max=255"`
	Description   string             `json:"description"              validate:"max=2000"`
	Trigger       models.TriggerKind `json:"trigger"                  validate:"required"`
	TriggerConfig map[string]any     `json:"trigger_config,omitempty"`
	Nodes         []*models.Node     `json:"nodes"                    validate:"required,min=1"`
	Edges         []*models.Edge     `json:"edges"`
}

// ExecuteWorkflowRequest represents the request body for a manual run. The
// payload stands in for the trigger event of a real firing.
type ExecuteWorkflowRequest struct {
	Payload map[string]any `json:"payload"`
}

// CloneTemplateRequest represents the request body for instantiating a
// catalog template into a tenant's own workflow.
type CloneTemplateRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
}
