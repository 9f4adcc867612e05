// Package registry is the action dispatch table: it maps a node's declared
// kind to the handler factory that can execute it, and validates node
// configuration against each factory's JSON schema when definitions are
// saved.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeKind]protocol.HandlerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[models.NodeKind]protocol.HandlerFactory),
	}
}

// Register adds a handler factory for its node kind. Later registrations
// replace earlier ones.
func (r *Registry) Register(factory protocol.HandlerFactory) {
	r.factories[factory.Kind()] = factory
}

// Factory returns the factory for a node kind.
func (r *Registry) Factory(kind models.NodeKind) (protocol.HandlerFactory, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("node kind %q not registered", kind)
	}

	return factory, nil
}

// CreateHandler builds a handler for the node, bound to the collaborator
// bundle for this invocation.
func (r *Registry) CreateHandler(node *models.Node, collaborators protocol.Collaborators) (protocol.Handler, error) {
	factory, err := r.Factory(node.Kind)
	if err != nil {
		return nil, err
	}

	return factory.Create(node, collaborators)
}

// Kinds returns every registered node kind.
func (r *Registry) Kinds() []models.NodeKind {
	kinds := make([]models.NodeKind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}

	return kinds
}

// ValidateNodeConfig checks a node's config against the JSON schema its
// factory declares. Runs at definition-save time so a bad config never
// reaches dispatch.
func (r *Registry) ValidateNodeConfig(node *models.Node) error {
	factory, err := r.Factory(node.Kind)
	if err != nil {
		return err
	}

	configJSON, err := json.Marshal(node.Config)
	if err != nil {
		return fmt.Errorf("node %s: marshal config: %w", node.ID, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(factory.Schema()),
		gojsonschema.NewBytesLoader(configJSON),
	)
	if err != nil {
		return fmt.Errorf("node %s: schema validation: %w", node.ID, err)
	}

	if !result.Valid() {
		first := result.Errors()[0]

		return fmt.Errorf("node %s: config does not match %s schema: %s", node.ID, node.Kind, first.String())
	}

	return nil
}

// HealthCheck reports whether every engine node kind has a handler.
func (r *Registry) HealthCheck() (string, bool) {
	for _, kind := range models.KnownNodeKinds {
		if _, ok := r.factories[kind]; !ok {
			return fmt.Sprintf("node kind %q has no registered handler", kind), false
		}
	}

	return fmt.Sprintf("%d node kinds registered", len(r.factories)), true
}
