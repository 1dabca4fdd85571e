package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/types"
)

// CreateEveningSession inserts a new session for the given date. The
// UNIQUE(user_id, date) constraint enforces at most one session per user
// per calendar date; a second insert returns ErrSessionExists.
func (s *Store) CreateEveningSession(sess *types.EveningSession) error {
	if sess == nil {
		return &ValidationError{Field: "session", Reason: "must not be nil"}
	}
	if sess.Date == "" {
		return &ValidationError{Field: "date", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM evening_sessions WHERE user_id = ? AND date = ?`,
		sess.UserID, sess.Date).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existing session: %w", err)
	}
	if exists > 0 {
		return ErrSessionExists
	}

	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	reviewsJSON, _ := json.Marshal(sess.Reviews)
	transcriptJSON, _ := json.Marshal(sess.Transcript)

	_, err = s.db.Exec(`
		INSERT INTO evening_sessions
		(id, user_id, date, state, task_reviews, current_task_index, gratitude_answer, summary, conversation, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Date, string(sess.State), string(reviewsJSON),
		sess.CurrentIndex, sess.Gratitude, sess.Summary, string(transcriptJSON), sess.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create evening session: %w", err)
	}

	s.logger.Info("evening session created",
		zap.Int64("user_id", sess.UserID),
		zap.String("date", sess.Date))
	return nil
}

// SaveEveningSession persists the mutable session fields.
func (s *Store) SaveEveningSession(sess *types.EveningSession) error {
	if sess == nil || sess.ID == "" {
		return &ValidationError{Field: "session", Reason: "missing id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reviewsJSON, _ := json.Marshal(sess.Reviews)
	transcriptJSON, _ := json.Marshal(sess.Transcript)
	var completedAt interface{}
	if sess.CompletedAt != nil {
		completedAt = sess.CompletedAt.Unix()
	}

	res, err := s.db.Exec(`UPDATE evening_sessions SET
		state = ?, task_reviews = ?, current_task_index = ?, gratitude_answer = ?,
		summary = ?, conversation = ?, completed_at = ?
		WHERE id = ?`,
		string(sess.State), string(reviewsJSON), sess.CurrentIndex, sess.Gratitude,
		sess.Summary, string(transcriptJSON), completedAt, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to save evening session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("evening session %s not found", sess.ID)
	}
	return nil
}

// ActiveEveningSession returns the user's most recent non-completed session,
// or nil when no session is in flight.
func (s *Store) ActiveEveningSession(userID int64) (*types.EveningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT id, user_id, date, state, task_reviews, current_task_index,
		gratitude_answer, summary, conversation, started_at, completed_at
		FROM evening_sessions
		WHERE user_id = ? AND state != 'completed'
		ORDER BY date DESC LIMIT 1`, userID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// EveningSessionForDate returns the session for the exact date regardless of
// state, or nil.
func (s *Store) EveningSessionForDate(userID int64, date string) (*types.EveningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT id, user_id, date, state, task_reviews, current_task_index,
		gratitude_answer, summary, conversation, started_at, completed_at
		FROM evening_sessions WHERE user_id = ? AND date = ?`, userID, date)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func scanSession(row scanner) (*types.EveningSession, error) {
	var sess types.EveningSession
	var state, reviewsJSON, transcriptJSON string
	var startedAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&sess.ID, &sess.UserID, &sess.Date, &state, &reviewsJSON,
		&sess.CurrentIndex, &sess.Gratitude, &sess.Summary, &transcriptJSON,
		&startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	sess.State = types.EveningSessionState(state)
	sess.StartedAt = time.Unix(startedAt, 0)
	if completedAt.Valid {
		done := time.Unix(completedAt.Int64, 0)
		sess.CompletedAt = &done
	}
	if err := json.Unmarshal([]byte(reviewsJSON), &sess.Reviews); err != nil {
		return nil, fmt.Errorf("corrupt task_reviews for session %s: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(transcriptJSON), &sess.Transcript); err != nil {
		return nil, fmt.Errorf("corrupt conversation for session %s: %w", sess.ID, err)
	}
	return &sess, nil
}

// AppendDailySummary stores a completed day's summary and evicts the oldest
// rows beyond types.MaxDailySummaries for that user.
func (s *Store) AppendDailySummary(sum *types.DailySummary) error {
	if sum == nil {
		return &ValidationError{Field: "summary", Reason: "must not be nil"}
	}
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO daily_summaries
		(id, user_id, date, tasks_reviewed, tasks_with_progress, tasks_needing_help,
		 gratitude_theme, productivity_level, summary_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.UserID, sum.Date, sum.TasksReviewed, sum.TasksWithProgress,
		sum.TasksNeedingHelp, sum.GratitudeTheme, string(sum.Productivity),
		sum.Text, sum.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to append daily summary: %w", err)
	}

	// Retention cap: oldest first.
	_, err = s.db.Exec(`DELETE FROM daily_summaries WHERE user_id = ? AND id NOT IN (
		SELECT id FROM daily_summaries WHERE user_id = ?
		ORDER BY date DESC LIMIT ?)`,
		sum.UserID, sum.UserID, types.MaxDailySummaries)
	if err != nil {
		return fmt.Errorf("failed to trim daily summaries: %w", err)
	}
	return nil
}

// ListDailySummaries returns up to limit summaries, newest first. A limit of
// 0 returns everything retained.
func (s *Store) ListDailySummaries(userID int64, limit int) ([]types.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > types.MaxDailySummaries {
		limit = types.MaxDailySummaries
	}
	rows, err := s.db.Query(`SELECT id, user_id, date, tasks_reviewed, tasks_with_progress,
		tasks_needing_help, gratitude_theme, productivity_level, summary_text, created_at
		FROM daily_summaries WHERE user_id = ?
		ORDER BY date DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily summaries: %w", err)
	}
	defer rows.Close()

	var sums []types.DailySummary
	for rows.Next() {
		var sum types.DailySummary
		var productivity string
		var createdAt int64
		if err := rows.Scan(&sum.ID, &sum.UserID, &sum.Date, &sum.TasksReviewed,
			&sum.TasksWithProgress, &sum.TasksNeedingHelp, &sum.GratitudeTheme,
			&productivity, &sum.Text, &createdAt); err != nil {
			return nil, err
		}
		sum.Productivity = types.ProductivityLevel(productivity)
		sum.CreatedAt = time.Unix(createdAt, 0)
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// MarkNotified records that a scheduler job fired for (user, job, date).
// Returns true on the first call for that key and false on repeats, which
// is how the digest stays at-most-once per day across restarts.
func (s *Store) MarkNotified(userID int64, jobType, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT OR IGNORE INTO notification_log (user_id, job_type, date, sent_at)
		VALUES (?, ?, ?, ?)`, userID, jobType, date, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to mark notification: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearNotified releases the (user, job, date) marker so a failed send
// can be retried on the next pass.
func (s *Store) ClearNotified(userID int64, jobType, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM notification_log WHERE user_id = ? AND job_type = ? AND date = ?`,
		userID, jobType, date)
	if err != nil {
		return fmt.Errorf("failed to clear notification: %w", err)
	}
	return nil
}
