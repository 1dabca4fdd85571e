package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/perception"
	"github.com/alexeyavdey/gptbot/internal/session"
	"github.com/alexeyavdey/gptbot/internal/store"
	"github.com/alexeyavdey/gptbot/internal/types"
)

const mentorSystemPrompt = `You are a supportive productivity mentor inside a task tracker.
Help the user with planning, focus and workload stress. Be warm, practical
and concise (a few sentences). Never judge; suggest one concrete next step
when it fits.`

const mentorFallback = "I'm having trouble reaching my notes right now. " +
	"Try asking again in a moment, or tell me about a task instead."

// Mentor answers general-advice messages with a user-context block built
// from the profile, task analytics and recent daily summaries.
type Mentor struct {
	store  *store.Store
	client perception.LLMClient
	logger *zap.Logger
}

// NewMentor creates the general-advice handler.
func NewMentor(st *store.Store, client perception.LLMClient, logger *zap.Logger) *Mentor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mentor{store: st, client: client, logger: logger}
}

// Chat sends one mentor turn and records it in the user's bounded
// history. LLM failures degrade to a canned reply rather than an error;
// history is only appended on success.
func (m *Mentor) Chat(ctx context.Context, u *types.User, message string) (string, error) {
	prompt := m.buildPrompt(u, message)

	reply, err := m.client.CompleteWithSystem(ctx, mentorSystemPrompt, prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		m.logger.Warn("mentor completion failed", zap.Int64("user_id", u.ID), zap.Error(err))
		return mentorFallback, nil
	}
	reply = strings.TrimSpace(reply)

	u.AppendMentorTurn(message, reply)
	if err := m.store.SaveUser(u); err != nil {
		return "", err
	}
	return reply, nil
}

func (m *Mentor) buildPrompt(u *types.User, message string) string {
	var sb strings.Builder

	context := m.userContext(u)
	if context != "" {
		sb.WriteString("## About the user\n\n")
		sb.WriteString(context)
		sb.WriteString("\n\n")
	}

	if len(u.MentorHistory) > 0 {
		sb.WriteString("## Conversation so far\n\n")
		for _, turn := range u.MentorHistory {
			sb.WriteString(fmt.Sprintf("**%s**: %s\n\n", turn.Role, turn.Content))
		}
	}

	sb.WriteString("## Current Message\n\n")
	sb.WriteString(message)
	return sb.String()
}

// userContext assembles the profile/analytics/summary block. Pieces that
// cannot be loaded are simply left out.
func (m *Mentor) userContext(u *types.User) string {
	var parts []string

	if u.AnxietyLevel > 0 {
		parts = append(parts, fmt.Sprintf("Anxiety: %s (%.1f/5.0).",
			session.AnxietyLevelDescription(u.AnxietyLevel), u.AnxietyLevel))
	}
	if len(u.Goals) > 0 {
		var descs []string
		for _, g := range u.Goals {
			if d, ok := session.GoalDescriptions[g]; ok {
				descs = append(descs, strings.ToLower(d))
			}
		}
		if len(descs) > 0 {
			parts = append(parts, "Main goals: "+strings.Join(descs, ", ")+".")
		}
	}

	if analytics, err := m.store.Analytics(u.ID); err == nil && analytics.Total > 0 {
		parts = append(parts, fmt.Sprintf("Tasks: %d total, %d pending, %d in progress, %d completed (%.1f%% completion rate).",
			analytics.Total, analytics.Pending, analytics.InProgress, analytics.Completed, analytics.CompletionRate))
	}

	if sums, err := m.store.ListDailySummaries(u.ID, 3); err == nil && len(sums) > 0 {
		var lines []string
		for _, s := range sums {
			lines = append(lines, fmt.Sprintf("%s: %s productivity, %d/%d tasks with progress",
				s.Date, s.Productivity, s.TasksWithProgress, s.TasksReviewed))
		}
		parts = append(parts, "Recent evenings: "+strings.Join(lines, "; ")+".")
	}

	return strings.Join(parts, " ")
}
