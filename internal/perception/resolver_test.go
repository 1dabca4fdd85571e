package perception

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/types"
)

// stubClient replays a canned response and records the prompts it saw.
type stubClient struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (s *stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

func (s *stubClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.lastSystem = systemPrompt
	s.lastUser = userPrompt
	return s.response, s.err
}

func TestResolveParsesPlainJSON(t *testing.T) {
	stub := &stubClient{response: `{
		"action": "delete",
		"selected_tasks": [{"task_id": "t1", "title": "Buy milk", "confidence": 0.9, "reasoning": "direct mention"}],
		"requires_confirmation": true,
		"suggested_response": "Delete Buy milk?"
	}`}
	r := NewResolver(stub, zap.NewNop())

	decision, err := r.Resolve(context.Background(), "delete the milk task", sampleTasks(), nil)
	require.NoError(t, err)
	assert.Equal(t, types.ActionDelete, decision.Action)
	require.Len(t, decision.SelectedTasks, 1)
	assert.Equal(t, "t1", decision.SelectedTasks[0].TaskID)
	assert.True(t, decision.RequiresConfirmation)
}

func TestResolveStripsMarkdownFences(t *testing.T) {
	stub := &stubClient{response: "Sure, here is the classification:\n```json\n" +
		`{"action": "view", "selected_tasks": [], "requires_confirmation": false, "suggested_response": "Here are your tasks"}` +
		"\n```\nLet me know if you need anything else."}
	r := NewResolver(stub, zap.NewNop())

	decision, err := r.Resolve(context.Background(), "show my tasks", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ActionView, decision.Action)
	assert.Empty(t, decision.SelectedTasks)
}

func TestResolveClampsConfidence(t *testing.T) {
	stub := &stubClient{response: `{
		"action": "update",
		"selected_tasks": [
			{"task_id": "t1", "title": "a", "confidence": 1.7, "reasoning": ""},
			{"task_id": "t2", "title": "b", "confidence": -0.2, "reasoning": ""}
		],
		"requires_confirmation": false,
		"suggested_response": ""
	}`}
	r := NewResolver(stub, zap.NewNop())

	decision, err := r.Resolve(context.Background(), "mark them done", sampleTasks(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, decision.SelectedTasks[0].Confidence)
	assert.Equal(t, 0.0, decision.SelectedTasks[1].Confidence)
}

func TestResolveMalformedReplyIsResolverFailure(t *testing.T) {
	for _, response := range []string{
		"I cannot help with that.",
		`{"action": "obliterate", "selected_tasks": []}`,
		`{"action": "delete", "selected_tasks": [`,
	} {
		stub := &stubClient{response: response}
		r := NewResolver(stub, zap.NewNop())

		_, err := r.Resolve(context.Background(), "delete something", sampleTasks(), nil)
		assert.ErrorIs(t, err, ErrResolverFailure, "response: %s", response)
	}
}

func TestResolveTransportErrorIsResolverFailure(t *testing.T) {
	stub := &stubClient{err: errors.New("connection refused")}
	r := NewResolver(stub, zap.NewNop())

	_, err := r.Resolve(context.Background(), "anything", nil, nil)
	assert.ErrorIs(t, err, ErrResolverFailure)
}

func TestResolvePromptCarriesTasksAndBoundedHistory(t *testing.T) {
	stub := &stubClient{response: `{"action": "unknown", "selected_tasks": [], "requires_confirmation": false, "suggested_response": ""}`}
	r := NewResolver(stub, zap.NewNop())

	history := make([]types.DialogueEntry, 0, 8)
	for i := 0; i < 8; i++ {
		history = append(history, types.DialogueEntry{Role: "user", Content: fmt.Sprintf("turn-%d", i)})
	}

	_, err := r.Resolve(context.Background(), "hello", sampleTasks(), history)
	require.NoError(t, err)

	assert.Contains(t, stub.lastSystem, `"action"`)
	assert.Contains(t, stub.lastUser, "Bank site strategy presentation")
	assert.Contains(t, stub.lastUser, "id=t1")
	// Only the trailing window of the conversation is forwarded.
	assert.NotContains(t, stub.lastUser, "turn-0")
	assert.NotContains(t, stub.lastUser, "turn-2")
	assert.Contains(t, stub.lastUser, "turn-3")
	assert.Contains(t, stub.lastUser, "turn-7")
	assert.Contains(t, stub.lastUser, "hello")
}

func TestExtractJSONBalancedBraces(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, extractJSON(`noise {"a": {"b": 1}} trailing`))
	assert.Equal(t, `{"s": "ke}ep"}`, extractJSON(`{"s": "ke}ep"}`))
	assert.Equal(t, "", extractJSON("no json here"))
	assert.Equal(t, "", extractJSON(`{"unclosed": true`))
}
