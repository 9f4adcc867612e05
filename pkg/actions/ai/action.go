// Package ai provides the handlers for the AI-backed node kinds:
// classification, summarization and reply generation.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
	"github.com/relaycrm/relay/pkg/template"
)

// aiTimeout is the default wall-clock budget for one AI call. Provider
// round trips dominate here, so it is far above the record-creation budget.
const aiTimeout = 30 * time.Second

func unresolvedWarnings(paths []string) []string {
	warnings := make([]string, 0, len(paths))
	for _, path := range paths {
		warnings = append(warnings, fmt.Sprintf("unresolved placeholder %q", path))
	}

	return warnings
}

// ClassifyFactory builds ai_classify handlers.
type ClassifyFactory struct{}

func NewClassifyFactory() *ClassifyFactory {
	return &ClassifyFactory{}
}

func (*ClassifyFactory) Kind() models.NodeKind {
	return models.NodeAIClassify
}

func (*ClassifyFactory) Create(node *models.Node, collaborators protocol.Collaborators) (protocol.Handler, error) {
	config, ok := node.Config.(*models.ClassifyConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: expected classify config, got %T", node.ID, node.Config)
	}

	return &classifyHandler{config: config, ai: collaborators.AI}, nil
}

func (*ClassifyFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "Template for the text to classify.",
				"examples":    []string{"{{trigger.subject}}: {{trigger.body}}"},
			},
			"labels": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Candidate labels; the provider picks freely when empty.",
			},
		},
		"required": []string{"input"},
	}
}

func (*ClassifyFactory) Timeout() time.Duration {
	return aiTimeout
}

type classifyHandler struct {
	config *models.ClassifyConfig
	ai     protocol.AIService
}

func (h *classifyHandler) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Result, error) {
	input, unresolved := template.Resolve(h.config.Input, executionCtx)

	classification, err := h.ai.Classify(ctx, input, h.config.Labels)
	if err != nil {
		return nil, fmt.Errorf("classify call: %w", err)
	}

	return &protocol.Result{
		Output: map[string]any{
			"classification": classification.Classification,
			"confidence":     classification.Confidence,
			"input":          input,
		},
		Warnings: unresolvedWarnings(unresolved),
	}, nil
}

// SummarizeFactory builds ai_summarize handlers.
type SummarizeFactory struct{}

func NewSummarizeFactory() *SummarizeFactory {
	return &SummarizeFactory{}
}

func (*SummarizeFactory) Kind() models.NodeKind {
	return models.NodeAISummarize
}

func (*SummarizeFactory) Create(node *models.Node, collaborators protocol.Collaborators) (protocol.Handler, error) {
	config, ok := node.Config.(*models.SummarizeConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: expected summarize config, got %T", node.ID, node.Config)
	}

	return &summarizeHandler{config: config, ai: collaborators.AI}, nil
}

func (*SummarizeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "Template for the text to summarize.",
			},
		},
		"required": []string{"input"},
	}
}

func (*SummarizeFactory) Timeout() time.Duration {
	return aiTimeout
}

type summarizeHandler struct {
	config *models.SummarizeConfig
	ai     protocol.AIService
}

func (h *summarizeHandler) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Result, error) {
	input, unresolved := template.Resolve(h.config.Input, executionCtx)

	summary, err := h.ai.Summarize(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("summarize call: %w", err)
	}

	return &protocol.Result{
		Output: map[string]any{
			"summary": summary.Summary,
			"input":   input,
		},
		Warnings: unresolvedWarnings(unresolved),
	}, nil
}

// ReplyFactory builds ai_generate_reply handlers.
type ReplyFactory struct{}

func NewReplyFactory() *ReplyFactory {
	return &ReplyFactory{}
}

func (*ReplyFactory) Kind() models.NodeKind {
	return models.NodeAIGenerateReply
}

func (*ReplyFactory) Create(node *models.Node, collaborators protocol.Collaborators) (protocol.Handler, error) {
	config, ok := node.Config.(*models.GenerateReplyConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: expected generate-reply config, got %T", node.ID, node.Config)
	}

	return &replyHandler{config: config, ai: collaborators.AI}, nil
}

func (*ReplyFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{
				"type":        "string",
				"description": "Template for the message being replied to.",
			},
			"tone": map[string]any{
				"type":     "string",
				"examples": []string{"friendly", "formal"},
			},
			"context": map[string]any{
				"type":        "string",
				"description": "Template for extra context handed to the provider.",
			},
		},
		"required": []string{"input"},
	}
}

func (*ReplyFactory) Timeout() time.Duration {
	return aiTimeout
}

type replyHandler struct {
	config *models.GenerateReplyConfig
	ai     protocol.AIService
}

func (h *replyHandler) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Result, error) {
	input, unresolvedInput := template.Resolve(h.config.Input, executionCtx)
	replyContext, unresolvedContext := template.Resolve(h.config.Context, executionCtx)

	reply, err := h.ai.GenerateReply(ctx, input, h.config.Tone, replyContext)
	if err != nil {
		return nil, fmt.Errorf("generate-reply call: %w", err)
	}

	return &protocol.Result{
		Output: map[string]any{
			"reply": reply.Reply,
			"tone":  h.config.Tone,
		},
		Warnings: unresolvedWarnings(append(unresolvedInput, unresolvedContext...)),
	}, nil
}
