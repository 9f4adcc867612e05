package models

// BuiltinTemplates returns the template catalog shipped with the engine.
// Storage backends are seeded with these on startup; templates already
// present keep their stored version.
func BuiltinTemplates() []*WorkflowTemplate {
	return []*WorkflowTemplate{
		{
			ID:          "tpl-demo-request-triage",
			Category:    "sales",
			Name:        "Inbound demo request triage",
			Description: "Classify incoming email, open a lead for demo requests and notify the sales channel.",
			Trigger:     TriggerEmailReceived,
			Steps: []TemplateStep{
				{
					Kind:        NodeAIClassify,
					Description: "Classify email",
					Config: &ClassifyConfig{
						Input:  "{{trigger.subject}}: {{trigger.body}}",
						Labels: []string{"Demo Request", "Support", "Other"},
					},
				},
				{
					Kind:        NodeCondition,
					Description: "Demo request?",
					Config: &ConditionConfig{
						Field:    "{{node-2.classification}}",
						Operator: OperatorEquals,
						Value:    "Demo Request",
					},
				},
				{
					Kind:        NodeCreateLead,
					Description: "Open lead",
					Config: &CreateLeadConfig{
						Title:       "Demo request: {{trigger.subject}}",
						Description: "{{trigger.body}}",
						ContactID:   "{{trigger.contactId}}",
						Source:      "email",
					},
				},
				{
					Kind:        NodeSendNotification,
					Description: "Notify sales",
					Config: &NotificationConfig{
						Channel: ChannelFeed,
						Target:  "sales",
						Message: "New demo request lead: {{node-4.title}}",
					},
				},
			},
		},
		{
			ID:          "tpl-new-lead-followup",
			Category:    "sales",
			Name:        "New lead follow-up",
			Description: "Schedule a follow-up call two days after a lead is created and remind the owner.",
			Trigger:     TriggerLeadCreated,
			Steps: []TemplateStep{
				{
					Kind:        NodeCreateActivity,
					Description: "Schedule follow-up call",
					Config: &CreateActivityConfig{
						Subject:      "Follow up on {{trigger.title}}",
						ActivityType: "call",
						ContactID:    "{{trigger.contactId}}",
						DueInDays:    2,
					},
				},
				{
					Kind:        NodeDelay,
					Description: "Wait two days",
					Config:      &DelayConfig{Days: 2},
				},
				{
					Kind:        NodeSendNotification,
					Description: "Remind owner",
					Config: &NotificationConfig{
						Channel: ChannelFeed,
						Target:  "sales",
						Message: "Follow-up due for lead {{trigger.title}}",
					},
				},
			},
		},
		{
			ID:          "tpl-weekly-pipeline-digest",
			Category:    "reporting",
			Name:        "Weekly pipeline digest",
			Description: "Every Monday morning, summarize the pipeline snapshot and post it to the team feed.",
			Trigger:     TriggerScheduled,
			Steps: []TemplateStep{
				{
					Kind:        NodeAISummarize,
					Description: "Summarize pipeline",
					Config:      &SummarizeConfig{Input: "{{trigger.snapshot}}"},
				},
				{
					Kind:        NodeSendNotification,
					Description: "Post digest",
					Config: &NotificationConfig{
						Channel: ChannelFeed,
						Target:  "team",
						Message: "{{node-2.summary}}",
					},
				},
			},
		},
	}
}
