package protocol

import (
	"context"
	"time"
)

// Classification is the AI service's answer to a classify call.
type Classification struct {
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
}

// Summary is the AI service's answer to a summarize call.
type Summary struct {
	Summary string `json:"summary"`
}

// Reply is the AI service's answer to a generate-reply call.
type Reply struct {
	Reply string `json:"reply"`
}

// AIService is the external AI collaborator. Calls may fail with provider
// or rate-limit errors; the dispatcher treats those as recoverable node
// errors, not crashes.
type AIService interface {
	Classify(ctx context.Context, text string, labels []string) (*Classification, error)
	Summarize(ctx context.Context, text string) (*Summary, error)
	GenerateReply(ctx context.Context, text, tone, replyContext string) (*Reply, error)
}

// LeadFields are the resolved fields for a new lead record.
type LeadFields struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContactID   string `json:"contact_id,omitempty"`
	CompanyID   string `json:"company_id,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Lead is the created lead record as returned by the CRUD store.
type Lead struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ContactID string `json:"contact_id,omitempty"`
	Source    string `json:"source,omitempty"`
}

// ActivityFields are the resolved fields for a new activity record.
type ActivityFields struct {
	Subject      string     `json:"subject"`
	ActivityType string     `json:"activity_type,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	ContactID    string     `json:"contact_id,omitempty"`
	DueAt        *time.Time `json:"due_at,omitempty"`
}

// Activity is the created activity record as returned by the CRUD store.
type Activity struct {
	ID      string     `json:"id"`
	Subject string     `json:"subject"`
	DueAt   *time.Time `json:"due_at,omitempty"`
}

// CRMStore is the external record store collaborator. Every call is
// tenant-scoped and returns the created record with its generated id.
type CRMStore interface {
	CreateLead(ctx context.Context, tenantID string, fields LeadFields) (*Lead, error)
	CreateActivity(ctx context.Context, tenantID string, fields ActivityFields) (*Activity, error)
}

// Notifier delivers a resolved message to a named channel (email, webhook
// or the internal feed). The returned ack identifies the delivery.
type Notifier interface {
	Send(ctx context.Context, channel, target, message string) (ack string, err error)
}

// Collaborators bundles the external services a handler may need. The
// dispatcher injects the bundle per invocation.
type Collaborators struct {
	AI       AIService
	CRM      CRMStore
	Notifier Notifier
}
