package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/store"
	"github.com/alexeyavdey/gptbot/internal/types"
)

// AnxietyQuestions is the 5-item self-assessment survey. Answers are
// scored 1-5.
var AnxietyQuestions = []string{
	"I often feel anxious about work",
	"I find it hard to concentrate on tasks",
	"I feel overwhelmed by my responsibilities",
	"I tend to put things off until later",
	"Stressful situations throw me off balance easily",
}

// AvailableGoals lists the selectable focus areas.
var AvailableGoals = []string{
	"task_management", "stress_reduction", "productivity", "time_organization",
}

// GoalDescriptions maps goal ids to their display text.
var GoalDescriptions = map[string]string{
	"task_management":   "Managing tasks and setting priorities",
	"stress_reduction":  "Reducing stress and anxiety",
	"productivity":      "Improving productivity",
	"time_organization": "Organizing working time",
}

// AnxietyLevelDescription words a survey score: low up to 2.0, moderate
// up to 3.5, elevated above.
func AnxietyLevelDescription(level float64) string {
	switch {
	case level <= 2.0:
		return "low anxiety level"
	case level <= 3.5:
		return "moderate anxiety level"
	default:
		return "elevated anxiety level"
	}
}

// Wizard drives the multi-step onboarding flow. Steps advance strictly
// forward; free text and structured actions trigger the same transitions.
type Wizard struct {
	store  *store.Store
	logger *zap.Logger
}

// NewWizard creates an onboarding wizard backed by the given store.
func NewWizard(st *store.Store, logger *zap.Logger) *Wizard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wizard{store: st, logger: logger}
}

// Active reports whether the user is still inside the wizard.
func (w *Wizard) Active(u *types.User) bool {
	return u != nil && !u.OnboardingDone
}

// Start ensures the user exists and returns the greeting for their
// current step (new users begin at greeting).
func (w *Wizard) Start(userID int64) (*types.User, string, error) {
	u, err := w.store.EnsureUser(userID)
	if err != nil {
		return nil, "", err
	}
	if u.OnboardingDone {
		return u, "You are all set up. Tell me about a task, or ask for your list.", nil
	}
	return u, w.stepPrompt(u), nil
}

// HandleMessage advances the wizard by one free-text turn and persists
// the user. The reply always tells the user what comes next.
func (w *Wizard) HandleMessage(u *types.User, text string) (string, error) {
	reply := w.advance(u, text)
	if err := w.store.SaveUser(u); err != nil {
		return "", err
	}
	w.logger.Debug("onboarding turn",
		zap.Int64("user_id", u.ID),
		zap.String("step", string(u.Step)))
	return reply, nil
}

func (w *Wizard) advance(u *types.User, text string) string {
	trimmed := strings.ToLower(strings.TrimSpace(text))

	switch u.Step {
	case types.StepGreeting, "":
		u.Step = types.StepAnxietyIntro
		return w.stepPrompt(u)

	case types.StepAnxietyIntro:
		if trimmed == "skip" {
			u.Step = types.StepGoalSelection
			return "No problem, we can skip the survey.\n\n" + w.stepPrompt(u)
		}
		u.Step = types.StepAnxietySurvey
		u.AnxietyAnswers = u.AnxietyAnswers[:0]
		return w.surveyQuestion(u)

	case types.StepAnxietySurvey:
		return w.recordSurveyAnswer(u, trimmed)

	case types.StepGoalSelection:
		return w.recordGoals(u, trimmed)

	case types.StepNotificationSetup:
		return w.recordNotifications(u, trimmed)

	case types.StepMentorIntro:
		u.MetMentor = true
		u.Step = types.StepCompletion
		return w.completionSummary(u)

	case types.StepCompletion:
		u.Step = types.StepDone
		u.OnboardingDone = true
		return "Setup complete. Tell me about a task whenever you are ready."

	default:
		u.Step = types.StepDone
		u.OnboardingDone = true
		return "Setup complete. Tell me about a task whenever you are ready."
	}
}

func (w *Wizard) surveyQuestion(u *types.User) string {
	n := len(u.AnxietyAnswers)
	if n >= len(AnxietyQuestions) {
		return w.stepPrompt(u)
	}
	return fmt.Sprintf("Question %d of %d:\n\n%q\n\nAnswer with a number from 1 (not at all) to 5 (very much).",
		n+1, len(AnxietyQuestions), AnxietyQuestions[n])
}

func (w *Wizard) recordSurveyAnswer(u *types.User, text string) string {
	score, err := strconv.Atoi(text)
	if err != nil || score < 1 || score > 5 {
		return "Please answer with a number from 1 to 5.\n\n" + w.surveyQuestion(u)
	}
	u.AnxietyAnswers = append(u.AnxietyAnswers, score)

	if len(u.AnxietyAnswers) < len(AnxietyQuestions) {
		return w.surveyQuestion(u)
	}

	sum := 0
	for _, a := range u.AnxietyAnswers {
		sum += a
	}
	u.AnxietyLevel = math.Round(float64(sum)/float64(len(u.AnxietyAnswers))*10) / 10
	u.Step = types.StepGoalSelection
	return fmt.Sprintf("Thanks for answering. Your result: %s (%.1f/5.0).\n\n%s",
		AnxietyLevelDescription(u.AnxietyLevel), u.AnxietyLevel, w.stepPrompt(u))
}

func (w *Wizard) recordGoals(u *types.User, text string) string {
	if text == "done" || text == "next" {
		u.Step = types.StepNotificationSetup
		return w.stepPrompt(u)
	}

	matched := false
	for _, goal := range AvailableGoals {
		keyword := strings.ReplaceAll(goal, "_", " ")
		if strings.Contains(text, keyword) || strings.Contains(text, goal) {
			if !containsString(u.Goals, goal) {
				u.Goals = append(u.Goals, goal)
			}
			matched = true
		}
	}
	if !matched {
		return "I did not catch a goal there. " + w.stepPrompt(u)
	}
	return fmt.Sprintf("Got it, %d of %d goals selected. Add another, or say \"done\".",
		len(u.Goals), len(AvailableGoals))
}

func (w *Wizard) recordNotifications(u *types.User, text string) string {
	switch {
	case declinesNotifications(text):
		u.Notifications.Enabled = false
	default:
		u.Notifications.Enabled = true
		u.Notifications.DailyDigest = true
		u.Notifications.DeadlineReminders = true
		if t, ok := parseClock(text); ok {
			u.Notifications.SendTime = t
		}
	}
	u.Step = types.StepMentorIntro
	return w.stepPrompt(u)
}

// declinesNotifications matches refusals as whole words so that
// "noon", "know" or "notify at 08:30" never read as a "no".
func declinesNotifications(text string) bool {
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		switch word {
		case "no", "nope", "off", "none", "disable", "disabled":
			return true
		}
	}
	return false
}

func (w *Wizard) completionSummary(u *types.User) string {
	var sb strings.Builder
	sb.WriteString("Here is your setup:\n")
	if u.AnxietyLevel > 0 {
		sb.WriteString(fmt.Sprintf("- %s (%.1f/5.0)\n", AnxietyLevelDescription(u.AnxietyLevel), u.AnxietyLevel))
	}
	sb.WriteString(fmt.Sprintf("- Goals selected: %d of %d\n", len(u.Goals), len(GoalDescriptions)))
	if u.Notifications.Enabled {
		sb.WriteString(fmt.Sprintf("- Daily digest at %s (%s)\n", u.Notifications.SendTime, u.Notifications.Timezone))
	} else {
		sb.WriteString("- Notifications off\n")
	}
	sb.WriteString("\nSend anything to finish setup.")
	return sb.String()
}

// stepPrompt returns the canned prompt shown on entering a step.
func (w *Wizard) stepPrompt(u *types.User) string {
	switch u.Step {
	case types.StepGreeting, "":
		return "Welcome! I am your productivity tracker. I will ask a few questions to set things up. Send anything to begin."
	case types.StepAnxietyIntro:
		return "First, a short 5-question survey about how work pressure affects you. Send anything to start, or \"skip\" to pass."
	case types.StepAnxietySurvey:
		return w.surveyQuestion(u)
	case types.StepGoalSelection:
		var sb strings.Builder
		sb.WriteString("What would you like to focus on? Available goals:\n")
		for _, goal := range AvailableGoals {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", strings.ReplaceAll(goal, "_", " "), GoalDescriptions[goal]))
		}
		sb.WriteString("Name one or more, then say \"done\".")
		return sb.String()
	case types.StepNotificationSetup:
		return fmt.Sprintf("Do you want a daily task digest? Default time is %s. Answer \"yes\", \"no\", or give a time like 08:30.",
			types.DefaultNotificationSettings().SendTime)
	case types.StepMentorIntro:
		return "Last thing: I can act as a mentor: ask me anything about planning or focus at any time. Send anything to continue."
	default:
		return "Send anything to continue."
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// parseClock pulls an HH:MM time out of free text.
func parseClock(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		parts := strings.Split(field, ":")
		if len(parts) != 2 {
			continue
		}
		h, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			continue
		}
		return fmt.Sprintf("%02d:%02d", h, m), true
	}
	return "", false
}
