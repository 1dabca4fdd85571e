package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/perception"
	"github.com/alexeyavdey/gptbot/internal/store"
	"github.com/alexeyavdey/gptbot/internal/types"
)

// negativeOutcomePhrases mark a task-review reply as "no progress"; they
// flip needs_help and trigger one extra help-capture turn.
var negativeOutcomePhrases = []string{
	"nothing", "didn't do", "did not do", "no progress", "not started",
	"couldn't", "could not", "stuck", "problem", "failed", "gave up",
}

func indicatesNoProgress(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range negativeOutcomePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Reflection runs the nightly review session: walk active tasks one by
// one, capture a gratitude note, then synthesize a daily summary.
type Reflection struct {
	store  *store.Store
	client perception.LLMClient
	logger *zap.Logger
	now    func() time.Time
}

// NewReflection creates the evening session handler.
func NewReflection(st *store.Store, client perception.LLMClient, logger *zap.Logger) *Reflection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reflection{store: st, client: client, logger: logger, now: time.Now}
}

// Active returns the user's in-flight session, if any.
func (r *Reflection) Active(userID int64) (*types.EveningSession, error) {
	return r.store.ActiveEveningSession(userID)
}

// Start opens tonight's session. It fails with ErrSessionExists when a
// session (active or completed) already exists for today, and with
// ErrNoActiveTasks when there is nothing to review.
func (r *Reflection) Start(userID int64) (*types.EveningSession, string, error) {
	today := r.now().Format("2006-01-02")

	existing, err := r.store.EveningSessionForDate(userID, today)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", store.ErrSessionExists
	}

	tasks, err := r.store.ListTasks(userID, "")
	if err != nil {
		return nil, "", err
	}
	reviews := make([]types.TaskReviewItem, 0, len(tasks))
	for _, t := range tasks {
		if t.Status.Active() {
			reviews = append(reviews, types.TaskReviewItem{TaskID: t.ID, TaskTitle: t.Title})
		}
	}
	if len(reviews) == 0 {
		return nil, "", store.ErrNoActiveTasks
	}

	sess := &types.EveningSession{
		ID:      uuid.New().String(),
		UserID:  userID,
		Date:    today,
		State:   types.SessionTaskReview,
		Reviews: reviews,
	}
	if err := r.store.CreateEveningSession(sess); err != nil {
		return nil, "", err
	}

	r.logger.Info("evening session started",
		zap.Int64("user_id", userID),
		zap.Int("tasks", len(reviews)))

	reply := fmt.Sprintf("Let's review your %d active tasks.\n\n%s",
		len(reviews), r.reviewPrompt(sess))
	return sess, reply, nil
}

// HandleMessage advances the session by one turn and persists it.
func (r *Reflection) HandleMessage(ctx context.Context, sess *types.EveningSession, text string) (string, error) {
	sess.Transcript = append(sess.Transcript, types.DialogueEntry{Role: "user", Content: text})

	var reply string
	var err error
	switch sess.State {
	case types.SessionTaskReview:
		reply = r.handleTaskReview(ctx, sess, text)
	case types.SessionGratitude:
		reply, err = r.handleGratitude(ctx, sess, text)
		if err != nil {
			return "", err
		}
	default:
		reply = "This session is already wrapped up. See you tomorrow evening."
	}

	sess.Transcript = append(sess.Transcript, types.DialogueEntry{Role: "assistant", Content: reply})
	if err := r.store.SaveEveningSession(sess); err != nil {
		return "", err
	}
	return reply, nil
}

func (r *Reflection) handleTaskReview(ctx context.Context, sess *types.EveningSession, text string) string {
	cur := sess.CurrentReview()
	if cur == nil {
		sess.State = types.SessionGratitude
		return gratitudePrompt
	}

	if cur.Progress == "" {
		cur.Progress = text
		if indicatesNoProgress(text) {
			cur.NeedsHelp = true
			offer := r.generate(ctx, fmt.Sprintf(
				"The user could not make progress on the task %q and said: %q.\n"+
					"Write a short supportive reply (2-3 sentences), non-judgmental, and note that this is okay.",
				cur.TaskTitle, text),
				"That happens to everyone, and it is completely fine.")
			return offer + "\n\nHow can I help you with this task?"
		}
		// Progress recorded; close this item out and move on.
		cur.Completed = true
		support := r.generate(ctx, fmt.Sprintf(
			"The user reported progress on the task %q: %q.\n"+
				"Write a short encouraging reply (2-3 sentences) highlighting the progress, however small.",
			cur.TaskTitle, text),
			"Nice work, that is real progress.")
		return support + "\n\n" + r.advanceReview(sess)
	}

	// Second turn on the same item: capture what help they need.
	cur.HelpRequest = text
	help := r.generate(ctx, fmt.Sprintf(
		"The user is asking for help with the task %q: %q.\n"+
			"Suggest 2-3 concrete practical steps. Be constructive and supportive.",
		cur.TaskTitle, text),
		"Try breaking the task into one small first step you can finish in 15 minutes.")
	cur.Support = help
	cur.Completed = true
	return help + "\n\n" + r.advanceReview(sess)
}

const gratitudePrompt = "Time for gratitude. What are you grateful to yourself for today? " +
	"It can be anything: a big win or a small step forward."

// advanceReview moves to the next review item, or into gratitude after
// the last one.
func (r *Reflection) advanceReview(sess *types.EveningSession) string {
	sess.CurrentIndex++
	if sess.CurrentIndex < len(sess.Reviews) {
		return r.reviewPrompt(sess)
	}
	sess.State = types.SessionGratitude
	return gratitudePrompt
}

func (r *Reflection) reviewPrompt(sess *types.EveningSession) string {
	cur := sess.CurrentReview()
	if cur == nil {
		return gratitudePrompt
	}
	return fmt.Sprintf("Task %d/%d\n\nHow did it go today with:\n%s\n\nIf you did not get to it, that is fine, just say \"nothing\".",
		sess.CurrentIndex+1, len(sess.Reviews), cur.TaskTitle)
}

func (r *Reflection) handleGratitude(ctx context.Context, sess *types.EveningSession, text string) (string, error) {
	sess.Gratitude = text
	sess.State = types.SessionSummary

	ack := r.generate(ctx, fmt.Sprintf(
		"The user expressed gratitude to themselves: %q.\n"+
			"Write a warm, supportive reply (2-3 sentences) about recognizing one's own achievements.",
		text),
		"Recognizing your own effort matters. Well done.")

	summaryText, err := r.finalize(ctx, sess)
	if err != nil {
		return "", err
	}
	return ack + "\n\nDaily summary\n\n" + summaryText + "\n\nEvening session complete. Good night!", nil
}

// finalize synthesizes the DailySummary, appends it to long-term memory
// and closes the session.
func (r *Reflection) finalize(ctx context.Context, sess *types.EveningSession) (string, error) {
	withProgress := 0
	needingHelp := 0
	var lines []string
	for _, rev := range sess.Reviews {
		if rev.Progress != "" && !indicatesNoProgress(rev.Progress) {
			withProgress++
		}
		if rev.NeedsHelp {
			needingHelp++
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", rev.TaskTitle, rev.Progress))
	}

	text := r.generate(ctx, fmt.Sprintf(
		"Based on tonight's review, write a short daily summary (3-4 sentences), positive and motivating.\n\n"+
			"Task review:\n%s\n\nGratitude: %s\n\nStats: %d of %d tasks with progress.",
		strings.Join(lines, "\n"), sess.Gratitude, withProgress, len(sess.Reviews)),
		fmt.Sprintf("You reviewed %d tasks and made progress on %d of them. Keep the momentum going.",
			len(sess.Reviews), withProgress))

	theme := sess.Gratitude
	if len(theme) > 100 {
		theme = theme[:100]
	}

	now := r.now()
	sum := &types.DailySummary{
		ID:                uuid.New().String(),
		UserID:            sess.UserID,
		Date:              sess.Date,
		TasksReviewed:     len(sess.Reviews),
		TasksWithProgress: withProgress,
		TasksNeedingHelp:  needingHelp,
		GratitudeTheme:    theme,
		Productivity:      types.GradeProductivity(withProgress, len(sess.Reviews)),
		Text:              text,
		CreatedAt:         now,
	}
	if err := r.store.AppendDailySummary(sum); err != nil {
		return "", err
	}

	sess.Summary = text
	sess.State = types.SessionCompleted
	sess.CompletedAt = &now

	r.logger.Info("evening session completed",
		zap.Int64("user_id", sess.UserID),
		zap.String("productivity", string(sum.Productivity)))
	return text, nil
}

// generate asks the completion service for flavor text; a canned line is
// used when the call fails so the session never stalls on the LLM.
func (r *Reflection) generate(ctx context.Context, prompt, fallback string) string {
	if r.client == nil {
		return fallback
	}
	out, err := r.client.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(out) == "" {
		r.logger.Warn("reflection text generation failed", zap.Error(err))
		return fallback
	}
	return strings.TrimSpace(out)
}
