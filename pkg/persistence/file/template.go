package file

import (
	"context"
	"errors"
	"io/fs"
	"sort"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// TemplateRepository handles workflow template catalog file operations.
type TemplateRepository struct {
	store *Persistence
}

// List returns all templates in the catalog, sorted by category then name.
func (tr *TemplateRepository) List(ctx context.Context) ([]*models.WorkflowTemplate, error) {
	tr.store.mu.RLock()
	defer tr.store.mu.RUnlock()

	ids, err := tr.store.listIDs(templatesDir)
	if err != nil {
		return nil, err
	}

	templates := make([]*models.WorkflowTemplate, 0, len(ids))

	for _, id := range ids {
		var template models.WorkflowTemplate
		if err := tr.store.readDocument(templatesDir, id, &template); err != nil {
			return nil, err
		}

		templates = append(templates, &template)
	}

	sort.Slice(templates, func(i, j int) bool {
		if templates[i].Category != templates[j].Category {
			return templates[i].Category < templates[j].Category
		}

		return templates[i].Name < templates[j].Name
	})

	return templates, nil
}

// GetByID returns the template with the given identifier.
func (tr *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	tr.store.mu.RLock()
	defer tr.store.mu.RUnlock()

	var template models.WorkflowTemplate

	err := tr.store.readDocument(templatesDir, id, &template)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, err
	}

	return &template, nil
}

// Save persists a template. Used to seed the catalog.
func (tr *TemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	tr.store.mu.Lock()
	defer tr.store.mu.Unlock()

	return tr.store.writeDocument(templatesDir, template.ID, template)
}
