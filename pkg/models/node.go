// Package models defines the node and edge types that make up a workflow graph.
package models

import (
	"encoding/json"
	"fmt"
)

// NodeKind identifies the behavior of a node in the graph.
type NodeKind string

const (
	NodeTrigger          NodeKind = "trigger"
	NodeAIClassify       NodeKind = "ai_classify"
	NodeAISummarize      NodeKind = "ai_summarize"
	NodeAIGenerateReply  NodeKind = "ai_generate_reply"
	NodeCreateLead       NodeKind = "create_lead"
	NodeCreateActivity   NodeKind = "create_activity"
	NodeSendNotification NodeKind = "send_notification"
	NodeCondition        NodeKind = "condition"
	NodeDelay            NodeKind = "delay"
)

// KnownNodeKinds lists every node kind the engine can dispatch.
var KnownNodeKinds = []NodeKind{
	NodeTrigger,
	NodeAIClassify,
	NodeAISummarize,
	NodeAIGenerateReply,
	NodeCreateLead,
	NodeCreateActivity,
	NodeSendNotification,
	NodeCondition,
	NodeDelay,
}

// Node is a typed step in a workflow graph. Config carries the per-kind
// configuration payload; Position is presentation-only and never read by the
// engine.
type Node struct {
	ID        string     `json:"id"   validate:"required"`
	Kind      NodeKind   `json:"kind" validate:"required"`
	Name      string     `json:"name"`
	Config    NodeConfig `json:"config"`
	PositionX int        `json:"position_x"`
	PositionY int        `json:"position_y"`
}

// Edge is a directed link between two nodes. Branch is required on edges
// leaving a condition node (true selects the true-branch) and must be absent
// everywhere else; branch selection is never inferred from declaration order.
type Edge struct {
	ID     string `json:"id"     validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Branch *bool  `json:"branch,omitempty"`
}

type nodeAlias struct {
	ID        string          `json:"id"`
	Kind      NodeKind        `json:"kind"`
	Name      string          `json:"name"`
	Config    json.RawMessage `json:"config"`
	PositionX int             `json:"position_x"`
	PositionY int             `json:"position_y"`
}

// UnmarshalJSON decodes the node and its kind-tagged config payload.
func (n *Node) UnmarshalJSON(data []byte) error {
	var alias nodeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	config, err := DecodeNodeConfig(alias.Kind, alias.Config)
	if err != nil {
		return fmt.Errorf("node %s: %w", alias.ID, err)
	}

	n.ID = alias.ID
	n.Kind = alias.Kind
	n.Name = alias.Name
	n.Config = config
	n.PositionX = alias.PositionX
	n.PositionY = alias.PositionY

	return nil
}
