package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
)

type stubAI struct {
	classification *protocol.Classification
	summary        *protocol.Summary
	reply          *protocol.Reply
	err            error

	lastInput  string
	lastLabels []string
	lastTone   string
}

func (s *stubAI) Classify(_ context.Context, text string, labels []string) (*protocol.Classification, error) {
	s.lastInput = text
	s.lastLabels = labels

	return s.classification, s.err
}

func (s *stubAI) Summarize(_ context.Context, text string) (*protocol.Summary, error) {
	s.lastInput = text

	return s.summary, s.err
}

func (s *stubAI) GenerateReply(_ context.Context, text, tone, _ string) (*protocol.Reply, error) {
	s.lastInput = text
	s.lastTone = tone

	return s.reply, s.err
}

func execContext() *models.ExecutionContext {
	return models.NewExecutionContext("exec-1", "wf-1", "acme", map[string]any{
		"subject": "Demo request",
		"body":    "We would like a demo",
	})
}

func collaboratorsWith(ai protocol.AIService) protocol.Collaborators {
	return protocol.Collaborators{AI: ai}
}

func TestClassifyResolvesInputTemplate(t *testing.T) {
	ai := &stubAI{classification: &protocol.Classification{Classification: "Lead Inquiry", Confidence: 0.92}}

	node := &models.Node{ID: "classify", Kind: models.NodeAIClassify, Config: &models.ClassifyConfig{
		Input:  "{{trigger.subject}}: {{trigger.body}}",
		Labels: []string{"Lead Inquiry", "Support"},
	}}

	handler, err := NewClassifyFactory().Create(node, collaboratorsWith(ai))
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, "Demo request: We would like a demo", ai.lastInput)
	assert.Equal(t, []string{"Lead Inquiry", "Support"}, ai.lastLabels)
	assert.Equal(t, "Lead Inquiry", result.Output["classification"])
	assert.InDelta(t, 0.92, result.Output["confidence"], 0.001)
	assert.Empty(t, result.Warnings)
}

func TestClassifyWarnsOnUnresolvedPlaceholder(t *testing.T) {
	ai := &stubAI{classification: &protocol.Classification{Classification: "Support", Confidence: 0.5}}

	node := &models.Node{ID: "classify", Kind: models.NodeAIClassify, Config: &models.ClassifyConfig{
		Input: "{{missing.path}}",
	}}

	handler, err := NewClassifyFactory().Create(node, collaboratorsWith(ai))
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "missing.path")
}

func TestClassifyPropagatesProviderError(t *testing.T) {
	ai := &stubAI{err: errors.New("rate limited")}

	node := &models.Node{ID: "classify", Kind: models.NodeAIClassify, Config: &models.ClassifyConfig{
		Input: "{{trigger.subject}}",
	}}

	handler, err := NewClassifyFactory().Create(node, collaboratorsWith(ai))
	require.NoError(t, err)

	_, err = handler.Execute(context.Background(), execContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestClassifyRejectsWrongConfigType(t *testing.T) {
	node := &models.Node{ID: "classify", Kind: models.NodeAIClassify, Config: &models.DelayConfig{}}

	_, err := NewClassifyFactory().Create(node, collaboratorsWith(&stubAI{}))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	ai := &stubAI{summary: &protocol.Summary{Summary: "short version"}}

	node := &models.Node{ID: "summarize", Kind: models.NodeAISummarize, Config: &models.SummarizeConfig{
		Input: "{{trigger.body}}",
	}}

	handler, err := NewSummarizeFactory().Create(node, collaboratorsWith(ai))
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, "We would like a demo", ai.lastInput)
	assert.Equal(t, "short version", result.Output["summary"])
}

func TestGenerateReply(t *testing.T) {
	ai := &stubAI{reply: &protocol.Reply{Reply: "Thanks for reaching out"}}

	node := &models.Node{ID: "reply", Kind: models.NodeAIGenerateReply, Config: &models.GenerateReplyConfig{
		Input: "{{trigger.body}}",
		Tone:  "friendly",
	}}

	handler, err := NewReplyFactory().Create(node, collaboratorsWith(ai))
	require.NoError(t, err)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, "friendly", ai.lastTone)
	assert.Equal(t, "Thanks for reaching out", result.Output["reply"])
	assert.Equal(t, "friendly", result.Output["tone"])
}
