package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexeyavdey/gptbot/internal/types"
)

// EnsureUser creates the tracker profile if it does not exist yet and
// returns the current profile either way.
func (s *Store) EnsureUser(userID int64) (*types.User, error) {
	s.mu.Lock()
	notifJSON, _ := json.Marshal(types.DefaultNotificationSettings())
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO tracker_users (user_id, step, started_at, notifications)
		VALUES (?, ?, ?, ?)`,
		userID, string(types.StepGreeting), time.Now().Unix(), string(notifJSON))
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.GetUser(userID)
}

// GetUser loads a tracker profile. Returns sql.ErrNoRows when the user has
// never been seen.
func (s *Store) GetUser(userID int64) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT user_id, step, completed, started_at, anxiety_level,
		anxiety_answers, goals, notifications, met_mentor, mentor_history, current_view
		FROM tracker_users WHERE user_id = ?`, userID)

	var u types.User
	var step string
	var completed, metMentor int
	var startedAt int64
	var answersJSON, goalsJSON, notifJSON, historyJSON string

	err := row.Scan(&u.ID, &step, &completed, &startedAt, &u.AnxietyLevel,
		&answersJSON, &goalsJSON, &notifJSON, &metMentor, &historyJSON, &u.CurrentView)
	if err != nil {
		return nil, err
	}

	u.Step = types.OnboardingStep(step)
	u.OnboardingDone = completed != 0
	u.MetMentor = metMentor != 0
	u.StartedAt = time.Unix(startedAt, 0)
	u.Notifications = types.DefaultNotificationSettings()

	if err := json.Unmarshal([]byte(answersJSON), &u.AnxietyAnswers); err != nil {
		return nil, fmt.Errorf("corrupt anxiety_answers for user %d: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(goalsJSON), &u.Goals); err != nil {
		return nil, fmt.Errorf("corrupt goals for user %d: %w", userID, err)
	}
	if notifJSON != "{}" && notifJSON != "" {
		if err := json.Unmarshal([]byte(notifJSON), &u.Notifications); err != nil {
			return nil, fmt.Errorf("corrupt notifications for user %d: %w", userID, err)
		}
	}
	if err := json.Unmarshal([]byte(historyJSON), &u.MentorHistory); err != nil {
		return nil, fmt.Errorf("corrupt mentor_history for user %d: %w", userID, err)
	}

	return &u, nil
}

// SaveUser persists all mutable profile fields.
func (s *Store) SaveUser(u *types.User) error {
	if u == nil {
		return &ValidationError{Field: "user", Reason: "must not be nil"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	answersJSON, _ := json.Marshal(u.AnxietyAnswers)
	goalsJSON, _ := json.Marshal(u.Goals)
	notifJSON, _ := json.Marshal(u.Notifications)
	historyJSON, _ := json.Marshal(u.MentorHistory)

	res, err := s.db.Exec(`UPDATE tracker_users SET
		step = ?, completed = ?, anxiety_level = ?, anxiety_answers = ?,
		goals = ?, notifications = ?, met_mentor = ?, mentor_history = ?,
		current_view = ?, updated_at = ?
		WHERE user_id = ?`,
		string(u.Step), boolToInt(u.OnboardingDone), u.AnxietyLevel, string(answersJSON),
		string(goalsJSON), string(notifJSON), boolToInt(u.MetMentor), string(historyJSON),
		u.CurrentView, time.Now().Unix(), u.ID)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", u.ID)
	}
	return nil
}

// ListUserIDs returns every known tracker user. The scheduler iterates this
// set each cycle.
func (s *Store) ListUserIDs() ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT user_id FROM tracker_users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
