package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/registry"
)

// Workflow is the definition-facing service: CRUD over workflow
// definitions, template cloning and activation. Every write validates the
// full graph and each node's typed configuration before anything is
// persisted, so an invalid definition can never reach the engine.
type Workflow struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence, reg *registry.Registry) *Workflow {
	return &Workflow{
		persistence: p,
		registry:    reg,
		validator:   validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest carries a new definition.
type CreateWorkflowRequest struct {
	TenantID      string             `validate:"required"`
	Name          string             `validate:"required,max=255"`
	Description   string             `validate:"max=2000"`
	Trigger       models.TriggerKind `validate:"required"`
	TriggerConfig map[string]any
	Nodes         []*models.Node `validate:"required,min=1"`
	Edges         []*models.Edge
	IsActive      bool
}

// Create validates and persists a new definition.
func (w *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*models.WorkflowDefinition, error) {
	if err := w.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	now := time.Now().UTC()

	definition := &models.WorkflowDefinition{
		ID:            uuid.Must(uuid.NewV7()).String(),
		TenantID:      req.TenantID,
		Name:          req.Name,
		Description:   req.Description,
		Trigger:       req.Trigger,
		TriggerConfig: req.TriggerConfig,
		Nodes:         req.Nodes,
		Edges:         req.Edges,
		IsActive:      req.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := w.validateDefinition(definition); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return definition, nil
}

// UpdateWorkflowRequest replaces a definition's metadata and full graph.
// Nodes and edges are always replaced wholesale, never patched.
type UpdateWorkflowRequest struct {
	Name          string             `validate:"required,max=255"`
	Description   string             `validate:"max=2000"`
	Trigger       models.TriggerKind `validate:"required"`
	TriggerConfig map[string]any
	Nodes         []*models.Node `validate:"required,min=1"`
	Edges         []*models.Edge
}

// Update applies an atomic full-graph replacement to an existing
// definition. A definition edited mid-run does not affect in-flight
// traversals, which walk their snapshot.
func (w *Workflow) Update(ctx context.Context, id string, req UpdateWorkflowRequest) (*models.WorkflowDefinition, error) {
	if err := w.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	definition, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	definition.Name = req.Name
	definition.Description = req.Description
	definition.Trigger = req.Trigger
	definition.TriggerConfig = req.TriggerConfig
	definition.Nodes = req.Nodes
	definition.Edges = req.Edges
	definition.UpdatedAt = time.Now().UTC()

	if err := w.validateDefinition(definition); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return definition, nil
}

// Get returns one definition.
func (w *Workflow) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// List returns a tenant's definitions.
func (w *Workflow) List(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	return w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		TenantID: tenantID,
	})
}

// SetActive toggles whether the trigger binder selects the definition.
func (w *Workflow) SetActive(ctx context.Context, id string, active bool) (*models.WorkflowDefinition, error) {
	definition, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	definition.IsActive = active
	definition.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return definition, nil
}

// Delete soft-deletes the definition and removes its execution history.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if err := w.persistence.WorkflowRepository().Delete(ctx, id, time.Now().UTC()); err != nil {
		return err
	}

	if err := w.persistence.ExecutionRepository().DeleteByWorkflow(ctx, id); err != nil {
		return fmt.Errorf("failed to delete executions of workflow %s: %w", id, err)
	}

	return nil
}

// ListTemplates returns the template catalog.
func (w *Workflow) ListTemplates(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	return w.persistence.TemplateRepository().List(ctx)
}

// SeedTemplates writes the built-in template catalog into storage. A
// template already present keeps its stored version.
func (w *Workflow) SeedTemplates(ctx context.Context) error {
	templates := w.persistence.TemplateRepository()

	for _, template := range models.BuiltinTemplates() {
		_, err := templates.GetByID(ctx, template.ID)
		if err == nil {
			continue
		}

		if !errors.Is(err, persistence.ErrTemplateNotFound) {
			return fmt.Errorf("failed to check template %s: %w", template.ID, err)
		}

		if err := templates.Save(ctx, template); err != nil {
			return fmt.Errorf("failed to seed template %s: %w", template.ID, err)
		}
	}

	return nil
}

// CloneTemplate seeds a new definition from a catalog template: every
// step becomes one node, chained in order, with condition steps feeding
// their successor over the true branch.
func (w *Workflow) CloneTemplate(ctx context.Context, templateID, tenantID string) (*models.WorkflowDefinition, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidRequest)
	}

	template, err := w.persistence.TemplateRepository().GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	definition := &models.WorkflowDefinition{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TenantID:    tenantID,
		Name:        template.Name,
		Description: template.Description,
		Trigger:     template.Trigger,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	trigger := &models.Node{
		ID:     "node-1",
		Kind:   models.NodeTrigger,
		Name:   "Trigger",
		Config: &models.TriggerNodeConfig{},
	}
	definition.Nodes = append(definition.Nodes, trigger)

	previous := trigger

	for i, step := range template.Steps {
		node := &models.Node{
			ID:     fmt.Sprintf("node-%d", i+2),
			Kind:   step.Kind,
			Name:   step.Description,
			Config: step.Config,
		}
		definition.Nodes = append(definition.Nodes, node)

		edge := &models.Edge{
			ID:     fmt.Sprintf("edge-%d", i+1),
			Source: previous.ID,
			Target: node.ID,
		}

		// Only the matching branch continues past a condition step.
		if previous.Kind == models.NodeCondition {
			isPositive := true
			edge.Branch = &isPositive
		}

		definition.Edges = append(definition.Edges, edge)
		previous = node
	}

	if err := w.validateDefinition(definition); err != nil {
		return nil, fmt.Errorf("template %s clones to an invalid definition: %w", templateID, err)
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save cloned workflow: %w", err)
	}

	return definition, nil
}

// validateDefinition runs structural graph validation plus the per-kind
// config schema of every node.
func (w *Workflow) validateDefinition(definition *models.WorkflowDefinition) error {
	if err := models.ValidateGraph(definition); err != nil {
		return err
	}

	if w.registry == nil {
		return nil
	}

	for _, node := range definition.Nodes {
		if err := w.registry.ValidateNodeConfig(node); err != nil {
			return &models.DefinitionError{Problems: []string{err.Error()}}
		}
	}

	return nil
}
