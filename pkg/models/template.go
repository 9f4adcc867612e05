package models

import (
	"encoding/json"
	"fmt"
)

// WorkflowTemplate is an immutable catalog entry used to seed a new
// workflow definition by cloning. Templates are never executed directly.
type WorkflowTemplate struct {
	ID          string         `json:"id"`
	Category    string         `json:"category"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Trigger     TriggerKind    `json:"trigger"     validate:"required"`
	Steps       []TemplateStep `json:"steps"`
}

// TemplateStep is one ordered step of a template. Steps translate 1:1 into
// nodes; edges chain consecutive steps, with the edge leaving a condition
// step tagged as the true branch.
type TemplateStep struct {
	Kind        NodeKind   `json:"kind" validate:"required"`
	Config      NodeConfig `json:"config"`
	Description string     `json:"description,omitempty"`
}

type templateStepAlias struct {
	Kind        NodeKind        `json:"kind"`
	Config      json.RawMessage `json:"config"`
	Description string          `json:"description,omitempty"`
}

// UnmarshalJSON decodes the step and its kind-tagged config payload.
func (s *TemplateStep) UnmarshalJSON(data []byte) error {
	var alias templateStepAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	config, err := DecodeNodeConfig(alias.Kind, alias.Config)
	if err != nil {
		return fmt.Errorf("template step: %w", err)
	}

	s.Kind = alias.Kind
	s.Config = config
	s.Description = alias.Description

	return nil
}
