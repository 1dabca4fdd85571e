package store

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/types"
)

// CreateTask inserts a new pending task and returns its id.
func (s *Store) CreateTask(userID int64, title, description string, priority types.TaskPriority, dueAt *time.Time) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if priority == "" {
		priority = types.PriorityMedium
	}
	if !priority.Valid() {
		return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", priority)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	taskID := uuid.New().String()
	now := time.Now().Unix()
	var due interface{}
	if dueAt != nil {
		due = dueAt.Unix()
	}

	_, err := s.db.Exec(`
		INSERT INTO tasks (id, user_id, title, description, priority, status, created_at, updated_at, due_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, userID, title, description, string(priority), string(types.StatusPending), now, now, due)
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task created", zap.String("task_id", taskID), zap.Int64("user_id", userID))
	return taskID, nil
}

// ListTasks returns the user's tasks ordered by recency. An empty status
// returns all tasks.
func (s *Store) ListTasks(userID int64, status types.TaskStatus) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, user_id, title, description, priority, status, created_at, updated_at, due_at, completed_at
		FROM tasks WHERE user_id = ?`
	args := []interface{}{userID}
	if status != "" {
		if !status.Valid() {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
		}
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// GetTask fetches a single task scoped by (id, owner).
func (s *Store) GetTask(taskID string, userID int64) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT id, user_id, title, description, priority, status, created_at, updated_at, due_at, completed_at
		FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus sets the status, stamping completed_at iff the task
// transitions to completed. Returns ErrNotFound when (id, owner) does not
// match, mutating nothing.
func (s *Store) UpdateTaskStatus(taskID string, userID int64, status types.TaskStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	var completedAt interface{}
	if status == types.StatusCompleted {
		completedAt = now
	}

	res, err := s.db.Exec(`UPDATE tasks SET status = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND user_id = ?`,
		string(status), now, completedAt, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	s.logger.Info("task status updated",
		zap.String("task_id", taskID),
		zap.String("status", string(status)))
	return nil
}

// UpdateTaskPriority sets the priority, scoped by (id, owner).
func (s *Store) UpdateTaskPriority(taskID string, userID int64, priority types.TaskPriority) error {
	if !priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", priority)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tasks SET priority = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(priority), time.Now().Unix(), taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to update task priority: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task scoped by (id, owner). Deletion is hard; there
// is no undo. Returns false when nothing matched.
func (s *Store) DeleteTask(taskID string, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	s.logger.Info("task deleted", zap.String("task_id", taskID), zap.Int64("user_id", userID))
	return true, nil
}

// Analytics aggregates the user's tasks. CompletionRate is rounded to two
// decimals and is exactly 0 when the user has no tasks.
func (s *Store) Analytics(userID int64) (types.TaskAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := types.TaskAnalytics{PriorityDistribution: make(map[types.TaskPriority]int)}

	row := s.db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE user_id = ?`, userID)
	if err := row.Scan(&a.Total, &a.Completed, &a.InProgress, &a.Pending); err != nil {
		return a, fmt.Errorf("failed to aggregate tasks: %w", err)
	}

	rows, err := s.db.Query(`SELECT priority, COUNT(*) FROM tasks WHERE user_id = ? GROUP BY priority`, userID)
	if err != nil {
		return a, fmt.Errorf("failed to aggregate priorities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var priority string
		var count int
		if err := rows.Scan(&priority, &count); err != nil {
			return a, err
		}
		a.PriorityDistribution[types.TaskPriority(priority)] = count
	}
	if err := rows.Err(); err != nil {
		return a, err
	}

	// Guard the zero-task case explicitly: the rate is 0, never NaN.
	if a.Total > 0 {
		a.CompletionRate = math.Round(float64(a.Completed)/float64(a.Total)*10000) / 100
	}
	return a, nil
}

// TasksDueWithin returns active tasks whose deadline falls within the
// horizon from now, soonest first.
func (s *Store) TasksDueWithin(userID int64, horizon time.Duration) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threshold := time.Now().Add(horizon).Unix()
	rows, err := s.db.Query(`SELECT id, user_id, title, description, priority, status, created_at, updated_at, due_at, completed_at
		FROM tasks
		WHERE user_id = ? AND due_at IS NOT NULL AND due_at <= ?
		AND status IN ('pending', 'in_progress')
		ORDER BY due_at ASC`, userID, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query deadlines: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CompletedSince returns tasks completed at or after the given time.
func (s *Store) CompletedSince(userID int64, since time.Time) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, user_id, title, description, priority, status, created_at, updated_at, due_at, completed_at
		FROM tasks
		WHERE user_id = ? AND status = 'completed' AND completed_at >= ?
		ORDER BY completed_at DESC`, userID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query completed tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (types.Task, error) {
	var t types.Task
	var priority, status string
	var createdAt, updatedAt int64
	var dueAt, completedAt sql.NullInt64

	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &priority, &status,
		&createdAt, &updatedAt, &dueAt, &completedAt)
	if err != nil {
		return t, err
	}

	t.Priority = types.TaskPriority(priority)
	t.Status = types.TaskStatus(status)
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	if dueAt.Valid {
		due := time.Unix(dueAt.Int64, 0)
		t.DueAt = &due
	}
	if completedAt.Valid {
		done := time.Unix(completedAt.Int64, 0)
		t.CompletedAt = &done
	}
	return t, nil
}
