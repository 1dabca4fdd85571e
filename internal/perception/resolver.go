package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/types"
)

// ErrResolverFailure marks a completion-service timeout or a malformed
// structured reply. Callers fall back to the keyword classifier.
var ErrResolverFailure = errors.New("intent resolution failed")

const resolverSystemPrompt = `You are an intent classifier for a personal task tracker.
Given the user's message, their current task list and recent conversation,
decide what they want to do.

Respond with ONLY a JSON object, no prose, matching this schema:
{
  "action": "create" | "update" | "delete" | "view" | "unknown",
  "selected_tasks": [
    {"task_id": "...", "title": "...", "confidence": 0.0-1.0, "reasoning": "..."}
  ],
  "requires_confirmation": true | false,
  "suggested_response": "what to say to the user"
}

Rules:
- Only reference task_id values that appear in the task list below.
- For delete and update, set requires_confirmation to true unless the user
  already confirmed in this conversation.
- If no task matches the request, leave selected_tasks empty.
- If the message is not about tasks at all, use action "unknown".`

// Resolver maps a free-text utterance plus task context to a structured
// action decision using the completion service.
type Resolver struct {
	client LLMClient
	logger *zap.Logger
}

// NewResolver creates an intent resolver.
func NewResolver(client LLMClient, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, logger: logger}
}

// Resolve classifies one utterance. Any transport or parse failure is
// wrapped in ErrResolverFailure so the caller can take the fallback path.
func (r *Resolver) Resolve(ctx context.Context, utterance string, tasks []*types.Task, history []types.DialogueEntry) (*types.IntentDecision, error) {
	prompt := r.buildPrompt(utterance, tasks, history)

	response, err := r.client.CompleteWithSystem(ctx, resolverSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolverFailure, err)
	}

	decision, err := parseDecision(response)
	if err != nil {
		r.logger.Warn("malformed resolver reply",
			zap.Error(err),
			zap.Int("response_len", len(response)))
		return nil, fmt.Errorf("%w: %v", ErrResolverFailure, err)
	}

	r.logger.Debug("intent resolved", zap.Stringer("decision", decision))
	return decision, nil
}

// buildPrompt constructs the user prompt with task snapshot and history.
func (r *Resolver) buildPrompt(utterance string, tasks []*types.Task, history []types.DialogueEntry) string {
	var sb strings.Builder

	sb.WriteString("## Current Tasks\n\n")
	if len(tasks) == 0 {
		sb.WriteString("(no tasks)\n")
	}
	for _, t := range tasks {
		sb.WriteString(fmt.Sprintf("- id=%s title=%q status=%s priority=%s", t.ID, t.Title, t.Status, t.Priority))
		if t.Description != "" {
			sb.WriteString(fmt.Sprintf(" description=%q", t.Description))
		}
		sb.WriteString("\n")
	}

	if len(history) > 0 {
		sb.WriteString("\n## Recent Conversation\n\n")
		// Only include last few turns to stay focused
		start := 0
		if len(history) > 5 {
			start = len(history) - 5
		}
		for _, turn := range history[start:] {
			sb.WriteString(fmt.Sprintf("**%s**: %s\n\n", turn.Role, turn.Content))
		}
	}

	sb.WriteString("\n## Current Request\n\n")
	sb.WriteString(utterance)

	return sb.String()
}

// parseDecision extracts an IntentDecision from an LLM reply that may be
// wrapped in markdown fences or surrounding prose.
func parseDecision(response string) (*types.IntentDecision, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var decision types.IntentDecision
	if err := json.Unmarshal([]byte(jsonStr), &decision); err != nil {
		return nil, fmt.Errorf("JSON parse failed: %w", err)
	}

	if !decision.Action.Valid() {
		return nil, fmt.Errorf("unknown action %q", decision.Action)
	}
	for i := range decision.SelectedTasks {
		c := decision.SelectedTasks[i].Confidence
		if c < 0 {
			decision.SelectedTasks[i].Confidence = 0
		} else if c > 1 {
			decision.SelectedTasks[i].Confidence = 1
		}
	}
	return &decision, nil
}

// extractJSON finds the first balanced JSON object in a response
// (handles markdown wrappers).
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}
