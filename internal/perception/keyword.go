package perception

import (
	"strings"

	"github.com/alexeyavdey/gptbot/internal/types"
)

// Keyword tables for the deterministic fallback classifier. This tier only
// runs when the LLM resolver fails; it must never shadow the primary path.
var (
	createKeywords = []string{"create", "add", "new task", "remind me to"}
	deleteKeywords = []string{"delete", "remove", "drop", "get rid of"}
	updateKeywords = []string{"done", "complete", "finish", "mark", "start", "in progress", "priority"}
	viewKeywords   = []string{"show", "list", "view", "my tasks", "what do i have", "analytics", "stats"}
)

// ClassifyKeyword maps an utterance to an action by keyword lookup.
// Order matters: destructive verbs are checked before status verbs so
// "delete the finished task" classifies as delete.
func ClassifyKeyword(text string) types.IntentAction {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, deleteKeywords):
		return types.ActionDelete
	case containsAny(lower, createKeywords):
		return types.ActionCreate
	case containsAny(lower, updateKeywords):
		return types.ActionUpdate
	case containsAny(lower, viewKeywords):
		return types.ActionView
	default:
		return types.ActionUnknown
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// affirmativePhrases are full-message confirmations for a pending
// destructive action.
var affirmativePhrases = map[string]bool{
	"yes":        true,
	"y":          true,
	"yep":        true,
	"yeah":       true,
	"sure":       true,
	"confirm":    true,
	"confirmed":  true,
	"do it":      true,
	"go ahead":   true,
	"delete it":  true,
	"remove it":  true,
	"yes delete": true,
}

// IsAffirmative reports whether the whole message is a bare confirmation.
// Longer messages carrying new information are not affirmations; they go
// back through resolution.
func IsAffirmative(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.Trim(normalized, ".,!")
	return affirmativePhrases[normalized]
}
