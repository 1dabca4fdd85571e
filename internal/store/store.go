// Package store implements the canonical SQLite-backed persistence layer:
// tasks, tracker users, evening sessions, daily summaries, and the
// notification log used for scheduler idempotency.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store owns the SQLite database. All access goes through its methods;
// the mutex keeps scheduler reads from observing half-applied writes.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

// Open initializes the SQLite database at the given path, creating the
// schema if needed. Use ":memory:" for tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, &ValidationError{Field: "path", Reason: "database path required"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// initialize creates the required tables and indexes.
func (s *Store) initialize() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS tracker_users (
		user_id INTEGER PRIMARY KEY,
		step TEXT DEFAULT 'greeting',
		completed INTEGER DEFAULT 0,
		started_at INTEGER,
		anxiety_level REAL DEFAULT 0,
		anxiety_answers TEXT DEFAULT '[]',
		goals TEXT DEFAULT '[]',
		notifications TEXT DEFAULT '{}',
		met_mentor INTEGER DEFAULT 0,
		mentor_history TEXT DEFAULT '[]',
		current_view TEXT DEFAULT 'main',
		created_at INTEGER DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER DEFAULT (strftime('%s', 'now'))
	);
	`

	tasksTable := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT DEFAULT '',
		priority TEXT DEFAULT 'medium',
		status TEXT DEFAULT 'pending',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		due_at INTEGER,
		completed_at INTEGER,
		FOREIGN KEY (user_id) REFERENCES tracker_users (user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_due_at ON tasks(due_at);
	`

	sessionsTable := `
	CREATE TABLE IF NOT EXISTS evening_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		state TEXT DEFAULT 'starting',
		task_reviews TEXT DEFAULT '[]',
		current_task_index INTEGER DEFAULT 0,
		gratitude_answer TEXT DEFAULT '',
		summary TEXT DEFAULT '',
		conversation TEXT DEFAULT '[]',
		started_at INTEGER NOT NULL,
		completed_at INTEGER,
		FOREIGN KEY (user_id) REFERENCES tracker_users (user_id),
		UNIQUE(user_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_evening_sessions_user_date ON evening_sessions(user_id, date);
	`

	summariesTable := `
	CREATE TABLE IF NOT EXISTS daily_summaries (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		tasks_reviewed INTEGER DEFAULT 0,
		tasks_with_progress INTEGER DEFAULT 0,
		tasks_needing_help INTEGER DEFAULT 0,
		gratitude_theme TEXT DEFAULT '',
		productivity_level TEXT DEFAULT 'medium',
		summary_text TEXT DEFAULT '',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES tracker_users (user_id),
		UNIQUE(user_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_daily_summaries_user_date ON daily_summaries(user_id, date);
	`

	// Scheduler idempotency markers: one row per (user, job, date).
	notificationLog := `
	CREATE TABLE IF NOT EXISTS notification_log (
		user_id INTEGER NOT NULL,
		job_type TEXT NOT NULL,
		date TEXT NOT NULL,
		sent_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, job_type, date)
	);
	`

	for _, table := range []string{usersTable, tasksTable, sessionsTable, summariesTable, notificationLog} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	s.logger.Debug("store schema initialized", zap.String("path", s.dbPath))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
