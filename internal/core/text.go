package core

import (
	"fmt"
	"strings"

	"github.com/alexeyavdey/gptbot/internal/perception"
	"github.com/alexeyavdey/gptbot/internal/types"
)

// createPrefixes are command leads stripped when extracting a task title.
// Longest first so "create a task to" wins over "create".
var createPrefixes = []string{
	"create a task to", "create a task called", "create a task", "create task",
	"add a task to", "add a task called", "add a task", "add task",
	"new task:", "new task", "remind me to", "create", "add",
}

// extractTitle pulls the task title out of a create-style utterance.
func extractTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, p := range createPrefixes {
		if strings.HasPrefix(lower, p) {
			trimmed = strings.TrimSpace(trimmed[len(p):])
			break
		}
	}
	return strings.Trim(trimmed, " .,!\"")
}

// actionWords are verbs and filler stripped before name matching.
var actionWords = map[string]bool{
	"delete": true, "remove": true, "drop": true, "cancel": true,
	"mark": true, "set": true, "update": true, "finish": true,
	"finished": true, "complete": true, "completed": true, "done": true,
	"start": true, "started": true, "working": true, "on": true,
	"priority": true,
	"the": true, "a": true, "an": true, "my": true, "task": true,
	"tasks": true, "please": true, "as": true, "to": true, "of": true,
	"about": true, "that": true, "this": true, "it": true, "i": true,
	"low": true, "medium": true, "high": true, "urgent": true,
}

// stripActionWords reduces an utterance to the phrase naming a task.
func stripActionWords(text string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?\"")
		if w == "" || actionWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// priorityFromText picks a priority named in the utterance, defaulting
// to medium.
func priorityFromText(text string) types.TaskPriority {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "urgent"):
		return types.PriorityUrgent
	case strings.Contains(lower, "high"):
		return types.PriorityHigh
	case strings.Contains(lower, "low"):
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}

// statusFromText infers the target status of an update-style utterance.
// Completion verbs win; "start"/"working" means in progress.
func statusFromText(lower string) types.TaskStatus {
	switch {
	case strings.Contains(lower, "cancel"):
		return types.StatusCancelled
	case strings.Contains(lower, "start") || strings.Contains(lower, "working on") || strings.Contains(lower, "in progress"):
		return types.StatusInProgress
	default:
		return types.StatusCompleted
	}
}

func formatTaskList(tasks []types.Task) string {
	if len(tasks) == 0 {
		return "You have no tasks yet. Tell me about one to get started."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Your tasks (%d):\n", len(tasks)))
	for _, t := range tasks {
		sb.WriteString(fmt.Sprintf("- %s [%s, %s]", t.Title, t.Status, t.Priority))
		if t.DueAt != nil {
			sb.WriteString(" due " + t.DueAt.Format("Jan 2 15:04"))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatAnalytics(a types.TaskAnalytics) string {
	if a.Total == 0 {
		return "No tasks yet, so nothing to report."
	}
	return fmt.Sprintf("Task analytics:\n- total: %d\n- pending: %d\n- in progress: %d\n- completed: %d\n- completion rate: %.2f%%",
		a.Total, a.Pending, a.InProgress, a.Completed, a.CompletionRate)
}

// suggestionList shows the user's current tasks after a failed lookup.
func suggestionList(tasks []*types.Task) string {
	if len(tasks) == 0 {
		return "You have no tasks at the moment."
	}
	var sb strings.Builder
	sb.WriteString("Here is what you have:\n")
	for i, t := range tasks {
		if i == perception.MaxDisambiguation {
			break
		}
		sb.WriteString(fmt.Sprintf("- %s [%s]\n", t.Title, t.Status))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// disambiguationList asks the user to narrow a multi-match.
func disambiguationList(candidates []*types.Task) string {
	var sb strings.Builder
	for _, t := range candidates {
		sb.WriteString(fmt.Sprintf("- %s (id %s)\n", t.Title, t.ID))
	}
	sb.WriteString("Reply with a more specific phrase.")
	return sb.String()
}
