// Package conditional provides the condition-node handler that selects the
// branch the graph walker follows.
package conditional

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycrm/relay/pkg/condition"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
)

// Factory builds condition handlers.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Kind() models.NodeKind {
	return models.NodeCondition
}

func (*Factory) Create(node *models.Node, _ protocol.Collaborators) (protocol.Handler, error) {
	config, ok := node.Config.(*models.ConditionConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: expected condition config, got %T", node.ID, node.Config)
	}

	return &handler{config: config}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"language": map[string]any{
				"type":    "string",
				"enum":    []string{models.ConditionLanguageSimple, models.ConditionLanguageExpression},
				"default": models.ConditionLanguageSimple,
			},
			"field": map[string]any{
				"type":     "string",
				"examples": []string{"{{classify.classification}}"},
			},
			"operator": map[string]any{
				"type": "string",
				"enum": []string{
					models.OperatorEquals,
					models.OperatorNotEquals,
					models.OperatorGreaterThan,
					models.OperatorLessThan,
					models.OperatorContains,
				},
			},
			"value":      map[string]any{"type": "string"},
			"expression": map[string]any{"type": "string"},
		},
	}
}

func (*Factory) Timeout() time.Duration {
	return time.Second
}

type handler struct {
	config *models.ConditionConfig
}

// Execute evaluates the condition fail-closed and hands the boolean to the
// walker as the branch selector. Evaluation errors are recoverable: the
// result is false and the problem lands in the warnings.
func (h *handler) Execute(_ context.Context, executionCtx *models.ExecutionContext) (*protocol.Result, error) {
	result, err := condition.Evaluate(h.config, executionCtx)

	var warnings []string
	if err != nil {
		warnings = append(warnings, err.Error())
	}

	return &protocol.Result{
		Output: map[string]any{
			"result": result,
		},
		Branch:   &result,
		Warnings: warnings,
	}, nil
}
