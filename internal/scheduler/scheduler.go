package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexeyavdey/gptbot/internal/core"
	"github.com/alexeyavdey/gptbot/internal/store"
	"github.com/alexeyavdey/gptbot/internal/types"
)

// Job type markers recorded in the notification log.
const (
	JobDailyDigest      = "daily_digest"
	JobDeadlineReminder = "deadline_reminder"
)

// Config tunes the recurring jobs.
type Config struct {
	DigestTick    time.Duration // how often the digest clock is checked
	SweepInterval time.Duration // deadline sweep cadence
	Horizon       time.Duration // how far ahead the sweep looks
}

// DefaultConfig mirrors the production cadence: minute-resolution digest
// checks, a sweep every 2 hours over a 24-hour horizon.
func DefaultConfig() Config {
	return Config{
		DigestTick:    time.Minute,
		SweepInterval: 2 * time.Hour,
		Horizon:       24 * time.Hour,
	}
}

// Scheduler runs the two recurring notification jobs against the store,
// independent of the conversational request path.
type Scheduler struct {
	store    *store.Store
	notifier core.Notifier
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a scheduler. Zero config fields fall back to defaults.
func New(st *store.Store, notifier core.Notifier, config Config, logger *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if config.DigestTick <= 0 {
		config.DigestTick = def.DigestTick
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = def.SweepInterval
	}
	if config.Horizon <= 0 {
		config.Horizon = def.Horizon
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:    st,
		notifier: notifier,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks until the context is cancelled, driving both jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(ctx, s.config.DigestTick, s.RunDigestPass) })
	g.Go(func() error { return s.loop(ctx, s.config.SweepInterval, s.RunDeadlinePass) })

	s.logger.Info("notification scheduler started",
		zap.Duration("digest_tick", s.config.DigestTick),
		zap.Duration("sweep_interval", s.config.SweepInterval),
		zap.Duration("horizon", s.config.Horizon))

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, pass func() error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := pass(); err != nil {
				s.logger.Error("scheduler pass failed", zap.Error(err))
			}
		}
	}
}

// RunDigestPass sends the daily digest to every user whose local clock
// has reached their send time and who has not received one today. The
// notification log makes the send at-most-once per (user, date) even
// across restarts.
func (s *Scheduler) RunDigestPass() error {
	userIDs, err := s.store.ListUserIDs()
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		u, err := s.store.GetUser(userID)
		if err != nil {
			s.logger.Warn("digest: failed to load user", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		if !u.Notifications.Enabled || !u.Notifications.DailyDigest {
			continue
		}

		local, date := s.localClock(u.Notifications)
		if local < u.Notifications.SendTime {
			continue
		}

		first, err := s.store.MarkNotified(userID, JobDailyDigest, date)
		if err != nil {
			s.logger.Warn("digest: mark failed", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		if !first {
			continue
		}

		if err := s.sendDigest(userID); err != nil {
			s.logger.Warn("digest: send failed", zap.Int64("user_id", userID), zap.Error(err))
			// Release the marker so the next tick retries today.
			if cerr := s.store.ClearNotified(userID, JobDailyDigest, date); cerr != nil {
				s.logger.Error("digest: marker stuck, no retry today",
					zap.Int64("user_id", userID), zap.Error(cerr))
			}
			continue
		}
		s.logger.Info("daily digest sent", zap.Int64("user_id", userID), zap.String("date", date))
	}
	return nil
}

// SendManualDigest composes and sends a digest on demand, bypassing the
// send-time gate but not the settings gate.
func (s *Scheduler) SendManualDigest(userID int64) error {
	u, err := s.store.GetUser(userID)
	if err != nil {
		return err
	}
	if !u.Notifications.Enabled {
		return fmt.Errorf("notifications disabled for user %d", userID)
	}
	return s.sendDigest(userID)
}

func (s *Scheduler) sendDigest(userID int64) error {
	tasks, err := s.store.ListTasks(userID, "")
	if err != nil {
		return err
	}
	completed, err := s.store.CompletedSince(userID, s.now().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	return s.notifier.Send(userID, ComposeDigest(tasks, completed))
}

// RunDeadlinePass reminds each opted-in user about unfinished tasks due
// within the horizon, soonest first. At-most-once per (user, date).
func (s *Scheduler) RunDeadlinePass() error {
	userIDs, err := s.store.ListUserIDs()
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		u, err := s.store.GetUser(userID)
		if err != nil {
			s.logger.Warn("sweep: failed to load user", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		if !u.Notifications.Enabled || !u.Notifications.DeadlineReminders {
			continue
		}

		due, err := s.store.TasksDueWithin(userID, s.config.Horizon)
		if err != nil {
			s.logger.Warn("sweep: query failed", zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		if len(due) == 0 {
			continue
		}

		_, date := s.localClock(u.Notifications)
		first, err := s.store.MarkNotified(userID, JobDeadlineReminder, date)
		if err != nil || !first {
			continue
		}

		if err := s.notifier.Send(userID, ComposeDeadlineReminder(due, s.now())); err != nil {
			s.logger.Warn("sweep: send failed", zap.Int64("user_id", userID), zap.Error(err))
			if cerr := s.store.ClearNotified(userID, JobDeadlineReminder, date); cerr != nil {
				s.logger.Error("sweep: marker stuck, no retry today",
					zap.Int64("user_id", userID), zap.Error(cerr))
			}
			continue
		}
		s.logger.Info("deadline reminder sent",
			zap.Int64("user_id", userID), zap.Int("tasks", len(due)))
	}
	return nil
}

// localClock returns "HH:MM" and "YYYY-MM-DD" in the user's timezone.
// Unknown timezones fall back to UTC.
func (s *Scheduler) localClock(n types.NotificationSettings) (clock, date string) {
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		s.logger.Warn("unknown timezone, using UTC", zap.String("timezone", n.Timezone))
		loc = time.UTC
	}
	local := s.now().In(loc)
	return local.Format("15:04"), local.Format("2006-01-02")
}
