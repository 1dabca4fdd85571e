package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/perception"
	"github.com/alexeyavdey/gptbot/internal/session"
	"github.com/alexeyavdey/gptbot/internal/store"
	"github.com/alexeyavdey/gptbot/internal/types"
)

// IntentResolver classifies one utterance against the user's task
// snapshot. perception.Resolver is the production implementation.
type IntentResolver interface {
	Resolve(ctx context.Context, utterance string, tasks []*types.Task, history []types.DialogueEntry) (*types.IntentDecision, error)
}

// Notifier delivers outbound messages to a user. The scheduler and the
// create-notice path both publish through it.
type Notifier interface {
	Send(userID int64, text string) error
}

// maxDialogueWindow bounds the per-user conversation context handed to
// the resolver.
const maxDialogueWindow = 10

// pendingDelete is the one task awaiting an explicit "yes" before a hard
// delete executes.
type pendingDelete struct {
	taskID string
	title  string
}

// Orchestrator routes each inbound utterance: guided sessions first, then
// intent resolution, then dispatch. Turns for the same user are strictly
// serialized.
type Orchestrator struct {
	store      *store.Store
	resolver   IntentResolver
	wizard     *session.Wizard
	reflection *session.Reflection
	mentor     *Mentor
	notifier   Notifier
	logger     *zap.Logger

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
	pending   map[int64]*pendingDelete
	dialogue  map[int64][]types.DialogueEntry
}

// NewOrchestrator wires the router with its collaborators.
func NewOrchestrator(st *store.Store, resolver IntentResolver, wizard *session.Wizard, reflection *session.Reflection, mentor *Mentor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:      st,
		resolver:   resolver,
		wizard:     wizard,
		reflection: reflection,
		mentor:     mentor,
		logger:     logger,
		userLocks:  make(map[int64]*sync.Mutex),
		pending:    make(map[int64]*pendingDelete),
		dialogue:   make(map[int64][]types.DialogueEntry),
	}
}

// SetNotifier enables out-of-band notices such as the new-task
// confirmation push. Without one those notices are silently skipped.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// lockFor returns the per-user mutex, creating it on first sight.
func (o *Orchestrator) lockFor(userID int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		o.userLocks[userID] = l
	}
	return l
}

// HandleMessage processes one utterance end to end and returns the reply.
// It never leaves an utterance unanswered: resolver failures degrade to
// the keyword classifier and then to the mentor.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID int64, text string) (string, error) {
	l := o.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	u, err := o.store.EnsureUser(userID)
	if err != nil {
		return "", err
	}

	// Guided flows own the turn.
	if o.wizard.Active(u) {
		return o.wizard.HandleMessage(u, text)
	}
	sess, err := o.reflection.Active(userID)
	if err != nil {
		o.logger.Error("active session lookup failed, routing as free text",
			zap.Int64("user_id", userID), zap.Error(err))
	}
	if sess != nil {
		return o.reflection.HandleMessage(ctx, sess, text)
	}

	reply, err := o.routeFreeText(ctx, u, text)
	if err != nil {
		return "", err
	}
	o.recordDialogue(userID, text, reply)
	return reply, nil
}

// StartReflection opens tonight's evening session on explicit request.
func (o *Orchestrator) StartReflection(userID int64) (string, error) {
	l := o.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	_, reply, err := o.reflection.Start(userID)
	switch {
	case errors.Is(err, store.ErrSessionExists):
		return "We already did tonight's review. See you tomorrow evening.", nil
	case errors.Is(err, store.ErrNoActiveTasks):
		return "There are no active tasks to review. Add a task first.", nil
	case err != nil:
		return "", err
	}
	return reply, nil
}

func (o *Orchestrator) routeFreeText(ctx context.Context, u *types.User, text string) (string, error) {
	// A bare confirmation only acts when a delete is actually pending;
	// otherwise the text goes through normal resolution.
	if perception.IsAffirmative(text) {
		if p := o.takePending(u.ID); p != nil {
			return o.executeDelete(u.ID, p)
		}
	} else {
		// Any other message abandons the pending confirmation.
		o.clearPending(u.ID)
	}

	tasks, err := o.taskSnapshot(u.ID)
	if err != nil {
		return "", err
	}

	decision, err := o.resolver.Resolve(ctx, text, tasks, o.dialogueWindow(u.ID))
	if err != nil {
		o.logger.Warn("resolver failed, using keyword fallback",
			zap.Int64("user_id", u.ID), zap.Error(err))
		decision = &types.IntentDecision{Action: perception.ClassifyKeyword(text)}
	}

	return o.dispatch(ctx, u, text, tasks, decision)
}

func (o *Orchestrator) dispatch(ctx context.Context, u *types.User, text string, tasks []*types.Task, decision *types.IntentDecision) (string, error) {
	switch decision.Action {
	case types.ActionCreate:
		return o.handleCreate(u, text)
	case types.ActionView:
		return o.handleView(u.ID, text)
	case types.ActionDelete:
		return o.handleDelete(u.ID, text, tasks, decision)
	case types.ActionUpdate:
		return o.handleUpdate(u.ID, text, tasks, decision)
	default:
		return o.mentor.Chat(ctx, u, text)
	}
}

func (o *Orchestrator) handleCreate(u *types.User, text string) (string, error) {
	title := extractTitle(text)
	if title == "" {
		return "What should the task be called?", nil
	}
	priority := priorityFromText(text)

	id, err := o.store.CreateTask(u.ID, title, "", priority, nil)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			return fmt.Sprintf("I could not create that task: %s %s.", verr.Field, verr.Reason), nil
		}
		return "", err
	}
	o.logger.Info("task created", zap.Int64("user_id", u.ID), zap.String("task_id", id))

	if o.notifier != nil && u.Notifications.Enabled && u.Notifications.NewTaskNotices {
		notice := fmt.Sprintf("New task added: %s (%s priority)", title, priority)
		if err := o.notifier.Send(u.ID, notice); err != nil {
			o.logger.Warn("new task notice failed", zap.Int64("user_id", u.ID), zap.Error(err))
		}
	}
	return fmt.Sprintf("Created task %q with %s priority.", title, priority), nil
}

func (o *Orchestrator) handleView(userID int64, text string) (string, error) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "analytics") || strings.Contains(lower, "stats") {
		analytics, err := o.store.Analytics(userID)
		if err != nil {
			return "", err
		}
		return formatAnalytics(analytics), nil
	}

	tasks, err := o.store.ListTasks(userID, "")
	if err != nil {
		return "", err
	}
	return formatTaskList(tasks), nil
}

func (o *Orchestrator) handleDelete(userID int64, text string, tasks []*types.Task, decision *types.IntentDecision) (string, error) {
	candidates := o.candidates(text, tasks, decision)

	switch len(candidates) {
	case 0:
		return "I could not find that task.\n\n" + suggestionList(tasks), nil
	case 1:
		c := candidates[0]
		o.setPending(userID, &pendingDelete{taskID: c.ID, title: c.Title})
		return fmt.Sprintf("Delete %q (id %s)? This cannot be undone. Say \"yes\" to confirm.", c.Title, c.ID), nil
	default:
		return "Several tasks match. Which one did you mean?\n\n" + disambiguationList(candidates), nil
	}
}

func (o *Orchestrator) executeDelete(userID int64, p *pendingDelete) (string, error) {
	deleted, err := o.store.DeleteTask(p.taskID, userID)
	if err != nil {
		return "", err
	}
	if !deleted {
		return fmt.Sprintf("Task %q is already gone.", p.title), nil
	}
	o.logger.Info("task deleted", zap.Int64("user_id", userID), zap.String("task_id", p.taskID))
	return fmt.Sprintf("Deleted %q.", p.title), nil
}

func (o *Orchestrator) handleUpdate(userID int64, text string, tasks []*types.Task, decision *types.IntentDecision) (string, error) {
	candidates := o.candidates(text, tasks, decision)

	switch len(candidates) {
	case 0:
		return "I could not find that task.\n\n" + suggestionList(tasks), nil
	case 1:
		return o.applyUpdate(userID, candidates[0], text)
	default:
		return "Several tasks match. Which one did you mean?\n\n" + disambiguationList(candidates), nil
	}
}

func (o *Orchestrator) applyUpdate(userID int64, task *types.Task, text string) (string, error) {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "priority") {
		priority := priorityFromText(text)
		if err := o.store.UpdateTaskPriority(task.ID, userID, priority); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("Task %q no longer exists.", task.Title), nil
			}
			return "", err
		}
		return fmt.Sprintf("Set %q to %s priority.", task.Title, priority), nil
	}

	status := statusFromText(lower)
	if err := o.store.UpdateTaskStatus(task.ID, userID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Task %q no longer exists.", task.Title), nil
		}
		return "", err
	}
	switch status {
	case types.StatusCompleted:
		return fmt.Sprintf("Marked %q as completed. Well done!", task.Title), nil
	case types.StatusInProgress:
		return fmt.Sprintf("Marked %q as in progress.", task.Title), nil
	default:
		return fmt.Sprintf("Updated %q to %s.", task.Title, status), nil
	}
}

// candidates merges the resolver's selection with the tiered matcher.
// Resolver picks are trusted only when they reference real tasks.
func (o *Orchestrator) candidates(text string, tasks []*types.Task, decision *types.IntentDecision) []*types.Task {
	byID := make(map[string]*types.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var picked []*types.Task
	for _, sel := range decision.SelectedTasks {
		if t, ok := byID[sel.TaskID]; ok {
			picked = append(picked, t)
		}
	}
	if len(picked) > 0 {
		if len(picked) > perception.MaxDisambiguation {
			picked = picked[:perception.MaxDisambiguation]
		}
		return picked
	}

	phrase := stripActionWords(text)
	if phrase == "" {
		return nil
	}
	matches := perception.MatchTasks(tasks, phrase)
	if len(matches) > perception.MaxDisambiguation {
		matches = matches[:perception.MaxDisambiguation]
	}
	return matches
}

func (o *Orchestrator) taskSnapshot(userID int64) ([]*types.Task, error) {
	tasks, err := o.store.ListTasks(userID, "")
	if err != nil {
		return nil, err
	}
	snapshot := make([]*types.Task, len(tasks))
	for i := range tasks {
		snapshot[i] = &tasks[i]
	}
	return snapshot, nil
}

func (o *Orchestrator) setPending(userID int64, p *pendingDelete) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[userID] = p
}

func (o *Orchestrator) takePending(userID int64) *pendingDelete {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.pending[userID]
	delete(o.pending, userID)
	return p
}

func (o *Orchestrator) clearPending(userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pending, userID)
}

func (o *Orchestrator) dialogueWindow(userID int64) []types.DialogueEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dialogue[userID]
}

func (o *Orchestrator) recordDialogue(userID int64, userText, reply string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	window := append(o.dialogue[userID],
		types.DialogueEntry{Role: "user", Content: userText},
		types.DialogueEntry{Role: "assistant", Content: reply},
	)
	if len(window) > maxDialogueWindow {
		window = window[len(window)-maxDialogueWindow:]
	}
	o.dialogue[userID] = window
}
