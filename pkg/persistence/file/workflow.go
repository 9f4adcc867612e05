package file

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// WorkflowRepository handles workflow definition file operations.
type WorkflowRepository struct {
	store *Persistence
}

// List returns workflow definitions matching the given options, newest first.
// Soft-deleted definitions are never returned.
func (wr *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) ([]*models.WorkflowDefinition, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	ids, err := wr.store.listIDs(workflowsDir)
	if err != nil {
		return nil, persistence.NewWorkflowError("List", "", err)
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		definition, err := wr.load(id)
		if err != nil {
			if errors.Is(err, persistence.ErrWorkflowNotFound) {
				continue
			}

			return nil, err
		}

		if opts.TenantID != "" && definition.TenantID != opts.TenantID {
			continue
		}

		if opts.Trigger != "" && definition.Trigger != opts.Trigger {
			continue
		}

		if opts.ActiveOnly && !definition.IsActive {
			continue
		}

		definitions = append(definitions, definition)
	}

	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].CreatedAt.After(definitions[j].CreatedAt)
	})

	return definitions, nil
}

// GetByID returns the workflow definition with the given identifier.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	wr.store.mu.RLock()
	defer wr.store.mu.RUnlock()

	return wr.load(id)
}

// Save persists the definition with its full node and edge set. The temp
// file rename in writeDocument makes the replacement atomic.
func (wr *WorkflowRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	if err := wr.store.writeDocument(workflowsDir, definition.ID, definition); err != nil {
		return persistence.NewWorkflowError("Save", definition.ID, err)
	}

	return nil
}

// Delete soft-deletes the definition by stamping its deletion time.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string, deletedAt time.Time) error {
	wr.store.mu.Lock()
	defer wr.store.mu.Unlock()

	definition, err := wr.load(id)
	if err != nil {
		return err
	}

	definition.DeletedAt = &deletedAt

	if err := wr.store.writeDocument(workflowsDir, id, definition); err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// load reads a definition without locking; callers hold the store lock.
// Soft-deleted definitions surface as ErrWorkflowNotFound.
func (wr *WorkflowRepository) load(id string) (*models.WorkflowDefinition, error) {
	var definition models.WorkflowDefinition

	err := wr.store.readDocument(workflowsDir, id, &definition)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if definition.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &definition, nil
}
