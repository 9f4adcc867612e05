// Package events defines the business events that trigger workflows and
// the execution lifecycle events the engine publishes.
package events

import (
	"time"
)

type EventType string

// Topics.
const (
	// BusinessTopic carries CRM events consumed by the trigger binder.
	BusinessTopic = "relay.crm.events"

	// ExecutionTopic carries execution lifecycle events published by the
	// engine for other CRM components to observe.
	ExecutionTopic = "relay.executions"
)

// Message metadata keys.
const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"
)

const (
	// Business events.
	EmailReceivedEvent EventType = "crm.email.received"
	LeadCreatedEvent   EventType = "crm.lead.created"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Internal feed notifications posted by send_notification nodes.
	FeedItemPostedEvent EventType = "feed.item.posted"
)

// Event is anything the bus can carry.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	TenantID  string         `json:"tenant_id"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EmailReceived is published by the mail ingestion pipeline when a message
// lands in a tracked mailbox.
type EmailReceived struct {
	BaseEvent

	Mailbox   string `json:"mailbox"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	ContactID string `json:"contact_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
}

func (e EmailReceived) GetType() EventType {
	return EmailReceivedEvent
}

// TriggerPayload shapes the event into the map template placeholders see
// under the reserved trigger key.
func (e EmailReceived) TriggerPayload() map[string]any {
	return map[string]any{
		"mailbox":   e.Mailbox,
		"from":      e.From,
		"to":        e.To,
		"subject":   e.Subject,
		"body":      e.Body,
		"contactId": e.ContactID,
		"threadId":  e.ThreadID,
	}
}

// LeadCreated is published by the record store when a new lead appears.
type LeadCreated struct {
	BaseEvent

	LeadID    string  `json:"lead_id"`
	Title     string  `json:"title"`
	Source    string  `json:"source,omitempty"`
	ContactID string  `json:"contact_id,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

func (e LeadCreated) GetType() EventType {
	return LeadCreatedEvent
}

func (e LeadCreated) TriggerPayload() map[string]any {
	return map[string]any{
		"leadId":    e.LeadID,
		"title":     e.Title,
		"source":    e.Source,
		"contactId": e.ContactID,
		"value":     e.Value,
	}
}

// ExecutionStarted marks the opening of an execution record.
type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// ExecutionCompleted marks a run that reached succeeded.
type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	WorkflowID  string        `json:"workflow_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed marks a run that reached failed, carrying the fatal error.
type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	WorkflowID  string        `json:"workflow_id"`
	NodeID      string        `json:"node_id,omitempty"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// ExecutionCancelled marks a run stopped by an operator.
type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// FeedItemPosted carries an internal feed notification to the CRM UI.
type FeedItemPosted struct {
	BaseEvent

	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
}

func (e FeedItemPosted) GetType() EventType {
	return FeedItemPostedEvent
}
