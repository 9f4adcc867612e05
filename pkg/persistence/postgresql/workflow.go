package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// WorkflowRepository handles workflow definition database operations.
type WorkflowRepository struct {
	db *sql.DB
}

const workflowColumns = `id, tenant_id, name, description, trigger, trigger_config,
	is_active, is_template, execution_count, last_executed_at, created_at, updated_at`

// List returns workflow definitions matching the given options, newest
// first. Soft-deleted definitions are never returned.
func (wr *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowDefinition, error) {
	query := "SELECT " + workflowColumns + " FROM workflows WHERE deleted_at IS NULL"
	args := make([]any, 0, 3)

	if opts.TenantID != "" {
		args = append(args, opts.TenantID)
		query += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}

	if opts.Trigger != "" {
		args = append(args, string(opts.Trigger))
		query += fmt.Sprintf(" AND trigger = $%d", len(args))
	}

	if opts.ActiveOnly {
		query += " AND is_active = true"
	}

	query += " ORDER BY created_at DESC"

	rows, err := wr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewWorkflowError("List", "", err)
	}
	defer func() { _ = rows.Close() }()

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanWorkflow(rows)
		if err != nil {
			return nil, persistence.NewWorkflowError("List", "", err)
		}

		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewWorkflowError("List", "", err)
	}

	for _, definition := range definitions {
		if err := wr.loadGraph(ctx, definition); err != nil {
			return nil, persistence.NewWorkflowError("List", definition.ID, err)
		}
	}

	return definitions, nil
}

// GetByID returns the workflow definition with the given identifier.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	row := wr.db.QueryRowContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE id = $1 AND deleted_at IS NULL", id)

	definition, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if err := wr.loadGraph(ctx, definition); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return definition, nil
}

// Save persists the definition and replaces its full node and edge set in
// a single transaction.
func (wr *WorkflowRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	triggerConfig, err := marshalNullable(definition.TriggerConfig)
	if err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	tx, err := wr.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger = EXCLUDED.trigger,
			trigger_config = EXCLUDED.trigger_config,
			is_active = EXCLUDED.is_active,
			is_template = EXCLUDED.is_template,
			updated_at = EXCLUDED.updated_at`,
		definition.ID, definition.TenantID, definition.Name, definition.Description,
		string(definition.Trigger), triggerConfig, definition.IsActive, definition.IsTemplate,
		definition.ExecutionCount, definition.LastExecutedAt, definition.CreatedAt, definition.UpdatedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	// Edges reference nodes, so they go first on delete and last on insert.
	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_edges WHERE workflow_id = $1", definition.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", definition.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	for _, node := range definition.Nodes {
		config, err := json.Marshal(node.Config)
		if err != nil {
			return persistence.NewWorkflowError("Save", definition.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_nodes (workflow_id, id, kind, name, config, position_x, position_y)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			definition.ID, node.ID, string(node.Kind), node.Name, config, node.PositionX, node.PositionY)
		if err != nil {
			return persistence.NewWorkflowError("Save", definition.ID, err)
		}
	}

	for _, edge := range definition.Edges {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_edges (workflow_id, id, source_id, target_id, branch)
			VALUES ($1, $2, $3, $4, $5)`,
			definition.ID, edge.ID, edge.Source, edge.Target, edge.Branch)
		if err != nil {
			return persistence.NewWorkflowError("Save", definition.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	return nil
}

// Delete soft-deletes the definition by stamping its deletion time.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string, deletedAt time.Time) error {
	result, err := wr.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL", id, deletedAt)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// loadGraph attaches the definition's nodes and edges.
func (wr *WorkflowRepository) loadGraph(ctx context.Context, definition *models.WorkflowDefinition) error {
	rows, err := wr.db.QueryContext(ctx, `
		SELECT id, kind, name, config, position_x, position_y
		FROM workflow_nodes WHERE workflow_id = $1 ORDER BY id`, definition.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	definition.Nodes = make([]*models.Node, 0)

	for rows.Next() {
		var (
			node      models.Node
			kind      string
			rawConfig []byte
		)

		err = rows.Scan(&node.ID, &kind, &node.Name, &rawConfig, &node.PositionX, &node.PositionY)
		if err != nil {
			return err
		}

		node.Kind = models.NodeKind(kind)

		node.Config, err = models.DecodeNodeConfig(node.Kind, rawConfig)
		if err != nil {
			return fmt.Errorf("failed to decode config of node %s: %w", node.ID, err)
		}

		definition.Nodes = append(definition.Nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return err
	}

	edgeRows, err := wr.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, branch
		FROM workflow_edges WHERE workflow_id = $1 ORDER BY id`, definition.ID)
	if err != nil {
		return err
	}
	defer func() { _ = edgeRows.Close() }()

	definition.Edges = make([]*models.Edge, 0)

	for edgeRows.Next() {
		var edge models.Edge

		err = edgeRows.Scan(&edge.ID, &edge.Source, &edge.Target, &edge.Branch)
		if err != nil {
			return err
		}

		definition.Edges = append(definition.Edges, &edge)
	}

	return edgeRows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		definition    models.WorkflowDefinition
		trigger       string
		triggerConfig []byte
	)

	err := row.Scan(&definition.ID, &definition.TenantID, &definition.Name, &definition.Description,
		&trigger, &triggerConfig, &definition.IsActive, &definition.IsTemplate,
		&definition.ExecutionCount, &definition.LastExecutedAt, &definition.CreatedAt, &definition.UpdatedAt)
	if err != nil {
		return nil, err
	}

	definition.Trigger = models.TriggerKind(trigger)

	if len(triggerConfig) > 0 {
		if err := json.Unmarshal(triggerConfig, &definition.TriggerConfig); err != nil {
			return nil, fmt.Errorf("failed to decode trigger config: %w", err)
		}
	}

	return &definition, nil
}

// marshalNullable encodes v as JSON, mapping empty values to SQL NULL.
func marshalNullable(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return data, nil
}
