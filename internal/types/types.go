// Package types provides shared type definitions used across gptbot packages.
// This package exists to break import cycles between store, session, and core.
// Types in this package are foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"time"
)

// =============================================================================
// TASK TYPES
// =============================================================================

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a task in this status still needs attention.
func (s TaskStatus) Active() bool {
	return s == StatusPending || s == StatusInProgress
}

// TaskPriority is the urgency level of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is a single tracked task owned by one user.
// Invariant: CompletedAt is non-nil iff Status == StatusCompleted.
type Task struct {
	ID          string       `json:"id"`
	UserID      int64        `json:"user_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DueAt       *time.Time   `json:"due_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// TaskAnalytics is the aggregate view over one user's tasks.
// CompletionRate is a percentage in [0,100], exactly 0 when Total is 0.
type TaskAnalytics struct {
	Total                int                  `json:"total_tasks"`
	Completed            int                  `json:"completed_tasks"`
	InProgress           int                  `json:"in_progress_tasks"`
	Pending              int                  `json:"pending_tasks"`
	CompletionRate       float64              `json:"completion_rate"`
	PriorityDistribution map[TaskPriority]int `json:"priority_distribution"`
}

// =============================================================================
// USER TYPES
// =============================================================================

// OnboardingStep names a step of the onboarding wizard. Steps advance
// strictly forward through the sequence returned by OnboardingSteps.
type OnboardingStep string

const (
	StepGreeting          OnboardingStep = "greeting"
	StepAnxietyIntro      OnboardingStep = "anxiety_intro"
	StepAnxietySurvey     OnboardingStep = "anxiety_survey"
	StepGoalSelection     OnboardingStep = "goal_selection"
	StepNotificationSetup OnboardingStep = "notification_setup"
	StepMentorIntro       OnboardingStep = "mentor_intro"
	StepCompletion        OnboardingStep = "completion"
	StepDone              OnboardingStep = "completed"
)

// OnboardingSteps returns the wizard sequence in order, excluding the
// terminal StepDone marker.
func OnboardingSteps() []OnboardingStep {
	return []OnboardingStep{
		StepGreeting,
		StepAnxietyIntro,
		StepAnxietySurvey,
		StepGoalSelection,
		StepNotificationSetup,
		StepMentorIntro,
		StepCompletion,
	}
}

// NotificationSettings gates scheduler jobs per user.
type NotificationSettings struct {
	Enabled           bool   `json:"enabled" yaml:"enabled"`
	DailyDigest       bool   `json:"daily_digest" yaml:"daily_digest"`
	DeadlineReminders bool   `json:"deadline_reminders" yaml:"deadline_reminders"`
	NewTaskNotices    bool   `json:"new_task_notifications" yaml:"new_task_notifications"`
	SendTime          string `json:"send_time" yaml:"send_time"` // "HH:MM" in the user's timezone
	Timezone          string `json:"timezone" yaml:"timezone"`
}

// DefaultNotificationSettings returns the settings applied to new users.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Enabled:  true,
		SendTime: "09:00",
		Timezone: "UTC",
	}
}

// DialogueEntry is one turn of recorded conversation.
type DialogueEntry struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// User is the per-user profile and onboarding state.
type User struct {
	ID             int64                `json:"user_id"`
	Step           OnboardingStep       `json:"step"`
	OnboardingDone bool                 `json:"completed"`
	StartedAt      time.Time            `json:"started_at"`
	AnxietyLevel   float64              `json:"anxiety_level"` // 0 = not surveyed; otherwise avg of answers, one decimal
	AnxietyAnswers []int                `json:"anxiety_answers"`
	Goals          []string             `json:"goals"`
	Notifications  NotificationSettings `json:"notifications"`
	MetMentor      bool                 `json:"met_mentor"`
	MentorHistory  []DialogueEntry      `json:"mentor_history"`
	CurrentView    string               `json:"current_view"`
}

// MaxMentorHistory bounds the mentor dialogue retained per user
// (10 question/answer pairs).
const MaxMentorHistory = 20

// AppendMentorTurn records one user/assistant exchange, evicting the
// oldest entries beyond MaxMentorHistory.
func (u *User) AppendMentorTurn(userText, assistantText string) {
	u.MentorHistory = append(u.MentorHistory,
		DialogueEntry{Role: "user", Content: userText},
		DialogueEntry{Role: "assistant", Content: assistantText},
	)
	if len(u.MentorHistory) > MaxMentorHistory {
		u.MentorHistory = u.MentorHistory[len(u.MentorHistory)-MaxMentorHistory:]
	}
}

// =============================================================================
// EVENING SESSION TYPES
// =============================================================================

// EveningSessionState is the reflection session's state enum. Sessions
// advance strictly forward: starting -> task_review -> gratitude ->
// summary -> completed.
type EveningSessionState string

const (
	SessionStarting   EveningSessionState = "starting"
	SessionTaskReview EveningSessionState = "task_review"
	SessionGratitude  EveningSessionState = "gratitude"
	SessionSummary    EveningSessionState = "summary"
	SessionCompleted  EveningSessionState = "completed"
)

// TaskReviewItem is one task's slot in an evening reflection session.
type TaskReviewItem struct {
	TaskID      string `json:"task_id"`
	TaskTitle   string `json:"task_title"`
	Progress    string `json:"progress_description"`
	NeedsHelp   bool   `json:"needs_help"`
	HelpRequest string `json:"help_provided"`
	Support     string `json:"ai_support"`
	Completed   bool   `json:"completed"`
}

// EveningSession is one user's nightly reflection for a calendar date.
// Invariant: at most one session per user per date, active or completed.
type EveningSession struct {
	ID           string              `json:"id"`
	UserID       int64               `json:"user_id"`
	Date         string              `json:"date"` // YYYY-MM-DD in the user's timezone
	State        EveningSessionState `json:"state"`
	Reviews      []TaskReviewItem    `json:"task_reviews"`
	CurrentIndex int                 `json:"current_task_index"`
	Gratitude    string              `json:"gratitude_answer"`
	Summary      string              `json:"summary"`
	Transcript   []DialogueEntry     `json:"conversation"`
	StartedAt    time.Time           `json:"started_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// CurrentReview returns the review item under discussion, or nil once the
// index has moved past the last item.
func (s *EveningSession) CurrentReview() *TaskReviewItem {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Reviews) {
		return nil
	}
	return &s.Reviews[s.CurrentIndex]
}

// ProductivityLevel grades a reviewed day.
type ProductivityLevel string

const (
	ProductivityLow    ProductivityLevel = "low"
	ProductivityMedium ProductivityLevel = "medium"
	ProductivityHigh   ProductivityLevel = "high"
)

// GradeProductivity maps progress counts to a level: high above 70% of
// reviewed tasks, medium for any progress at all, low otherwise.
func GradeProductivity(withProgress, reviewed int) ProductivityLevel {
	switch {
	case reviewed > 0 && float64(withProgress) > float64(reviewed)*0.7:
		return ProductivityHigh
	case withProgress > 0:
		return ProductivityMedium
	default:
		return ProductivityLow
	}
}

// DailySummary is the durable record appended when an evening session
// completes. Retention is capped at MaxDailySummaries per user.
type DailySummary struct {
	ID                string            `json:"id"`
	UserID            int64             `json:"user_id"`
	Date              string            `json:"date"`
	TasksReviewed     int               `json:"tasks_reviewed"`
	TasksWithProgress int               `json:"tasks_with_progress"`
	TasksNeedingHelp  int               `json:"tasks_needing_help"`
	GratitudeTheme    string            `json:"gratitude_theme"`
	Productivity      ProductivityLevel `json:"productivity_level"`
	Text              string            `json:"summary_text"`
	CreatedAt         time.Time         `json:"created_at"`
}

// MaxDailySummaries is the per-user retention cap; oldest entries are
// evicted first.
const MaxDailySummaries = 30

// =============================================================================
// INTENT TYPES
// =============================================================================

// IntentAction is the resolved category of a free-text utterance.
type IntentAction string

const (
	ActionCreate  IntentAction = "create"
	ActionUpdate  IntentAction = "update"
	ActionDelete  IntentAction = "delete"
	ActionView    IntentAction = "view"
	ActionUnknown IntentAction = "unknown"
)

// Valid reports whether a is one of the known actions.
func (a IntentAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionView, ActionUnknown:
		return true
	}
	return false
}

// SelectedTask is one candidate task surfaced by the intent resolver.
type SelectedTask struct {
	TaskID     string  `json:"task_id"`
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// IntentDecision is the resolver's structured output for one utterance.
type IntentDecision struct {
	Action               IntentAction   `json:"action"`
	SelectedTasks        []SelectedTask `json:"selected_tasks"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	SuggestedResponse    string         `json:"suggested_response"`
}

// String renders the decision for logs.
func (d IntentDecision) String() string {
	return fmt.Sprintf("intent{action=%s candidates=%d confirm=%t}",
		d.Action, len(d.SelectedTasks), d.RequiresConfirmation)
}
