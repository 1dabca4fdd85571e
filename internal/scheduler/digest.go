package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexeyavdey/gptbot/internal/types"
)

const maxListedTasks = 3

// ComposeDigest renders the morning digest: open-work counts, what got
// finished in the last day, the most pressing tasks, and a closing tip.
func ComposeDigest(tasks, recentlyCompleted []types.Task) string {
	var pending, inProgress int
	var urgent []types.Task
	for _, t := range tasks {
		switch t.Status {
		case types.StatusPending:
			pending++
		case types.StatusInProgress:
			inProgress++
		}
		if t.Status.Active() && (t.Priority == types.PriorityUrgent || t.Priority == types.PriorityHigh) {
			urgent = append(urgent, t)
		}
	}
	sort.SliceStable(urgent, func(i, j int) bool {
		return priorityRank(urgent[i].Priority) > priorityRank(urgent[j].Priority)
	})

	var b strings.Builder
	b.WriteString("Good morning! Here is your daily digest.\n\n")
	fmt.Fprintf(&b, "Pending tasks: %d\n", pending)
	fmt.Fprintf(&b, "In progress: %d\n", inProgress)
	fmt.Fprintf(&b, "Completed in the last 24h: %d\n", len(recentlyCompleted))

	if len(urgent) > 0 {
		b.WriteString("\nMost pressing:\n")
		for i, t := range urgent {
			if i == maxListedTasks {
				fmt.Fprintf(&b, "...and %d more\n", len(urgent)-maxListedTasks)
				break
			}
			fmt.Fprintf(&b, "- [%s] %s\n", t.Priority, t.Title)
		}
	}

	b.WriteString("\n")
	b.WriteString(digestTip(pending+inProgress, len(urgent)))
	return b.String()
}

// ComposeDeadlineReminder renders the deadline sweep message. Tasks
// arrive sorted soonest first.
func ComposeDeadlineReminder(due []types.Task, now time.Time) string {
	var b strings.Builder
	if len(due) == 1 {
		b.WriteString("Heads up: a task is due soon.\n\n")
	} else {
		fmt.Fprintf(&b, "Heads up: %d tasks are due soon.\n\n", len(due))
	}

	const maxListed = 5
	for i, t := range due {
		if i == maxListed {
			fmt.Fprintf(&b, "...and %d more\n", len(due)-maxListed)
			break
		}
		fmt.Fprintf(&b, "- %s (due %s)\n", t.Title, dueIn(t, now))
	}
	return b.String()
}

func dueIn(t types.Task, now time.Time) string {
	if t.DueAt == nil {
		return "soon"
	}
	left := t.DueAt.Sub(now)
	switch {
	case left <= 0:
		return "now"
	case left < time.Hour:
		return fmt.Sprintf("in %d min", int(left.Minutes()))
	default:
		return fmt.Sprintf("in %d h", int(left.Hours()))
	}
}

func digestTip(open, urgent int) string {
	switch {
	case urgent > 3:
		return "Tip: with several urgent tasks, try a Pomodoro session on the top one before checking anything else."
	case open == 0:
		return "Tip: your list is clear. A good moment to plan new goals."
	default:
		return "Tip: start with the most important task while your energy is highest."
	}
}

func priorityRank(p types.TaskPriority) int {
	switch p {
	case types.PriorityUrgent:
		return 3
	case types.PriorityHigh:
		return 2
	case types.PriorityMedium:
		return 1
	default:
		return 0
	}
}
