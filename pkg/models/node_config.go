package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NodeConfig is the kind-tagged configuration payload of a node. Each node
// kind has its own strongly-typed config struct, validated when the
// definition is saved rather than when the node is dispatched.
type NodeConfig interface {
	ConfigKind() NodeKind
	Validate() error
}

// DecodeNodeConfig decodes a raw config payload into the typed struct for
// the given node kind. A nil/empty payload decodes to the kind's zero config.
func DecodeNodeConfig(kind NodeKind, raw json.RawMessage) (NodeConfig, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	var (
		config NodeConfig
		err    error
	)

	switch kind {
	case NodeTrigger:
		config, err = decodeInto[*TriggerNodeConfig](raw)
	case NodeAIClassify:
		config, err = decodeInto[*ClassifyConfig](raw)
	case NodeAISummarize:
		config, err = decodeInto[*SummarizeConfig](raw)
	case NodeAIGenerateReply:
		config, err = decodeInto[*GenerateReplyConfig](raw)
	case NodeCreateLead:
		config, err = decodeInto[*CreateLeadConfig](raw)
	case NodeCreateActivity:
		config, err = decodeInto[*CreateActivityConfig](raw)
	case NodeSendNotification:
		config, err = decodeInto[*NotificationConfig](raw)
	case NodeCondition:
		config, err = decodeInto[*ConditionConfig](raw)
	case NodeDelay:
		config, err = decodeInto[*DelayConfig](raw)
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}

	if err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", kind, err)
	}

	return config, nil
}

func decodeInto[T NodeConfig](raw json.RawMessage) (NodeConfig, error) {
	var config T
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, err
	}

	return config, nil
}

// TriggerNodeConfig is intentionally empty: trigger filters (mailbox,
// sources, cron expression) live on the definition's TriggerConfig and are
// interpreted by the trigger binder only.
type TriggerNodeConfig struct{}

func (*TriggerNodeConfig) ConfigKind() NodeKind { return NodeTrigger }
func (*TriggerNodeConfig) Validate() error      { return nil }

// ClassifyConfig configures an ai_classify node. Input is a template string
// resolved against the execution context before the AI call.
type ClassifyConfig struct {
	Input  string   `json:"input" validate:"required"`
	Labels []string `json:"labels,omitempty"`
}

func (*ClassifyConfig) ConfigKind() NodeKind { return NodeAIClassify }

func (c *ClassifyConfig) Validate() error {
	if c.Input == "" {
		return errors.New("input template is required")
	}

	return nil
}

// SummarizeConfig configures an ai_summarize node.
type SummarizeConfig struct {
	Input string `json:"input" validate:"required"`
}

func (*SummarizeConfig) ConfigKind() NodeKind { return NodeAISummarize }

func (c *SummarizeConfig) Validate() error {
	if c.Input == "" {
		return errors.New("input template is required")
	}

	return nil
}

// GenerateReplyConfig configures an ai_generate_reply node.
type GenerateReplyConfig struct {
	Input   string `json:"input" validate:"required"`
	Tone    string `json:"tone,omitempty"`
	Context string `json:"context,omitempty"`
}

func (*GenerateReplyConfig) ConfigKind() NodeKind { return NodeAIGenerateReply }

func (c *GenerateReplyConfig) Validate() error {
	if c.Input == "" {
		return errors.New("input template is required")
	}

	return nil
}

// CreateLeadConfig configures a create_lead node. All string fields are
// template strings.
type CreateLeadConfig struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	ContactID   string `json:"contact_id,omitempty"`
	CompanyID   string `json:"company_id,omitempty"`
	Source      string `json:"source,omitempty"`
}

func (*CreateLeadConfig) ConfigKind() NodeKind { return NodeCreateLead }

func (c *CreateLeadConfig) Validate() error {
	if c.Title == "" {
		return errors.New("title template is required")
	}

	return nil
}

// CreateActivityConfig configures a create_activity node.
type CreateActivityConfig struct {
	Subject      string `json:"subject" validate:"required"`
	ActivityType string `json:"activity_type,omitempty"`
	Notes        string `json:"notes,omitempty"`
	ContactID    string `json:"contact_id,omitempty"`
	DueInDays    int    `json:"due_in_days,omitempty"`
}

func (*CreateActivityConfig) ConfigKind() NodeKind { return NodeCreateActivity }

func (c *CreateActivityConfig) Validate() error {
	if c.Subject == "" {
		return errors.New("subject template is required")
	}

	if c.DueInDays < 0 {
		return errors.New("due_in_days must not be negative")
	}

	return nil
}

// Notification channels the engine can dispatch to.
const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
	ChannelFeed    = "feed"
)

// NotificationConfig configures a send_notification node. A delivery error
// only fails the branch when Required is set.
type NotificationConfig struct {
	Channel  string `json:"channel" validate:"required,oneof=email webhook feed"`
	Message  string `json:"message" validate:"required"`
	Target   string `json:"target,omitempty"`
	Required bool   `json:"required,omitempty"`
}

func (*NotificationConfig) ConfigKind() NodeKind { return NodeSendNotification }

func (c *NotificationConfig) Validate() error {
	switch c.Channel {
	case ChannelEmail, ChannelWebhook, ChannelFeed:
	default:
		return fmt.Errorf("unknown channel %q", c.Channel)
	}

	if c.Message == "" {
		return errors.New("message template is required")
	}

	return nil
}

// Condition languages.
const (
	ConditionLanguageSimple     = "simple"
	ConditionLanguageExpression = "expression"
)

// Comparison operators for the simple condition language.
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorContains    = "contains"
)

// ConditionConfig configures a condition node. The simple language compares
// a resolved template field against a literal value; the expression language
// evaluates a full boolean expression over the execution context.
type ConditionConfig struct {
	Language   string `json:"language,omitempty"`
	Field      string `json:"field,omitempty"`
	Operator   string `json:"operator,omitempty"`
	Value      string `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
}

func (*ConditionConfig) ConfigKind() NodeKind { return NodeCondition }

func (c *ConditionConfig) Validate() error {
	switch c.Language {
	case "", ConditionLanguageSimple:
		if c.Field == "" {
			return errors.New("field template is required")
		}

		switch c.Operator {
		case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan, OperatorContains:
		default:
			return fmt.Errorf("unknown operator %q", c.Operator)
		}
	case ConditionLanguageExpression:
		if c.Expression == "" {
			return errors.New("expression is required")
		}
	default:
		return fmt.Errorf("unknown condition language %q", c.Language)
	}

	return nil
}

// DelayConfig configures a delay node. Days follows the template-store
// convention; Duration accepts a Go duration string for finer-grained waits.
// Exactly one of the two must be set.
type DelayConfig struct {
	Days     int    `json:"days,omitempty"`
	Duration string `json:"duration,omitempty"`
}

func (*DelayConfig) ConfigKind() NodeKind { return NodeDelay }

func (c *DelayConfig) Validate() error {
	if c.Days < 0 {
		return errors.New("days must not be negative")
	}

	if c.Days > 0 && c.Duration != "" {
		return errors.New("set either days or duration, not both")
	}

	if c.Days == 0 && c.Duration == "" {
		return errors.New("either days or duration is required")
	}

	if c.Duration != "" {
		d, err := time.ParseDuration(c.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		if d < 0 {
			return errors.New("duration must not be negative")
		}
	}

	return nil
}

// Wait returns the concrete wait the delay config describes.
func (c *DelayConfig) Wait() time.Duration {
	if c.Duration != "" {
		d, err := time.ParseDuration(c.Duration)
		if err == nil {
			return d
		}
	}

	return time.Duration(c.Days) * 24 * time.Hour
}
