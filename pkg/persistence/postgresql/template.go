package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// TemplateRepository handles workflow template catalog database operations.
type TemplateRepository struct {
	db *sql.DB
}

// List returns all templates in the catalog, sorted by category then name.
func (tr *TemplateRepository) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	rows, err := tr.db.QueryContext(ctx, `
		SELECT id, category, name, description, trigger, steps
		FROM workflow_templates ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	templates := make([]*models.WorkflowTemplate, 0)

	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}

		templates = append(templates, template)
	}

	return templates, rows.Err()
}

// GetByID returns the template with the given identifier.
func (tr *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	row := tr.db.QueryRowContext(ctx, `
		SELECT id, category, name, description, trigger, steps
		FROM workflow_templates WHERE id = $1`, id)

	template, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}

	return template, nil
}

// Save persists a template. Used to seed the catalog.
func (tr *TemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	steps, err := json.Marshal(template.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps of template %s: %w", template.ID, err)
	}

	_, err = tr.db.ExecContext(ctx, `
		INSERT INTO workflow_templates (id, category, name, description, trigger, steps)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger = EXCLUDED.trigger,
			steps = EXCLUDED.steps`,
		template.ID, template.Category, template.Name, template.Description,
		string(template.Trigger), steps)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	return nil
}

func scanTemplate(row rowScanner) (*models.WorkflowTemplate, error) {
	var (
		template models.WorkflowTemplate
		trigger  string
		steps    []byte
	)

	err := row.Scan(&template.ID, &template.Category, &template.Name,
		&template.Description, &trigger, &steps)
	if err != nil {
		return nil, err
	}

	template.Trigger = models.TriggerKind(trigger)

	if err := json.Unmarshal(steps, &template.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps of template %s: %w", template.ID, err)
	}

	return &template, nil
}
