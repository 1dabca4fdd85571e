package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/store"
	"github.com/alexeyavdey/gptbot/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeNotifier struct {
	mu    sync.Mutex
	sends []string
	users []int64
}

func (f *fakeNotifier) Send(userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	f.sends = append(f.sends, text)
	return nil
}

func newTestScheduler(t *testing.T, at time.Time) (*Scheduler, *store.Store, *fakeNotifier) {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	n := &fakeNotifier{}
	s := New(st, n, Config{}, zap.NewNop())
	s.now = func() time.Time { return at }
	return s, st, n
}

func enableDigest(t *testing.T, st *store.Store, userID int64, sendTime, tz string) {
	t.Helper()
	u, err := st.EnsureUser(userID)
	require.NoError(t, err)
	u.Notifications.Enabled = true
	u.Notifications.DailyDigest = true
	u.Notifications.SendTime = sendTime
	u.Notifications.Timezone = tz
	require.NoError(t, st.SaveUser(u))
}

func TestDigestFiresAfterSendTime(t *testing.T) {
	at := time.Date(2026, 8, 26, 9, 1, 0, 0, time.UTC)
	s, st, n := newTestScheduler(t, at)
	enableDigest(t, st, 1, "09:00", "UTC")
	_, err := st.CreateTask(1, "Write report", "", types.PriorityHigh, nil)
	require.NoError(t, err)

	require.NoError(t, s.RunDigestPass())
	require.Len(t, n.sends, 1)
	assert.Contains(t, n.sends[0], "Pending tasks: 1")
	assert.Contains(t, n.sends[0], "Write report")
}

func TestDigestWaitsForSendTime(t *testing.T) {
	at := time.Date(2026, 8, 26, 8, 59, 0, 0, time.UTC)
	s, st, n := newTestScheduler(t, at)
	enableDigest(t, st, 1, "09:00", "UTC")

	require.NoError(t, s.RunDigestPass())
	assert.Empty(t, n.sends)
}

func TestDigestAtMostOncePerDay(t *testing.T) {
	at := time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC)
	s, st, n := newTestScheduler(t, at)
	enableDigest(t, st, 1, "09:00", "UTC")

	require.NoError(t, s.RunDigestPass())
	require.NoError(t, s.RunDigestPass())
	assert.Len(t, n.sends, 1)

	// Next calendar day fires again.
	s.now = func() time.Time { return at.Add(24 * time.Hour) }
	require.NoError(t, s.RunDigestPass())
	assert.Len(t, n.sends, 2)
}

func TestDigestUsesLocalClock(t *testing.T) {
	// 07:00 UTC is 09:00 in Berlin during DST, so the Berlin user
	// fires and the UTC user does not.
	at := time.Date(2026, 8, 26, 7, 5, 0, 0, time.UTC)
	s, st, n := newTestScheduler(t, at)
	enableDigest(t, st, 1, "09:00", "Europe/Berlin")
	enableDigest(t, st, 2, "09:00", "UTC")

	require.NoError(t, s.RunDigestPass())
	require.Len(t, n.users, 1)
	assert.Equal(t, int64(1), n.users[0])
}

func TestDigestRespectsSettings(t *testing.T) {
	at := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s, st, n := newTestScheduler(t, at)

	u, err := st.EnsureUser(1)
	require.NoError(t, err)
	u.Notifications.Enabled = false
	u.Notifications.DailyDigest = true
	require.NoError(t, st.SaveUser(u))

	u2, err := st.EnsureUser(2)
	require.NoError(t, err)
	u2.Notifications.Enabled = true
	u2.Notifications.DailyDigest = false
	require.NoError(t, st.SaveUser(u2))

	require.NoError(t, s.RunDigestPass())
	assert.Empty(t, n.sends)
}

func TestManualDigestBypassesClockButNotSettings(t *testing.T) {
	at := time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC)
	s, st, n := newTestScheduler(t, at)
	enableDigest(t, st, 1, "09:00", "UTC")

	require.NoError(t, s.SendManualDigest(1))
	assert.Len(t, n.sends, 1)

	u, err := st.GetUser(1)
	require.NoError(t, err)
	u.Notifications.Enabled = false
	require.NoError(t, st.SaveUser(u))
	assert.Error(t, s.SendManualDigest(1))
}

func TestDeadlineSweep(t *testing.T) {
	at := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s, st, n := newTestScheduler(t, at)

	u, err := st.EnsureUser(1)
	require.NoError(t, err)
	u.Notifications.Enabled = true
	u.Notifications.DeadlineReminders = true
	require.NoError(t, st.SaveUser(u))

	soon := at.Add(3 * time.Hour)
	later := at.Add(48 * time.Hour)
	_, err = st.CreateTask(1, "Submit filing", "", types.PriorityUrgent, &soon)
	require.NoError(t, err)
	_, err = st.CreateTask(1, "Next week thing", "", types.PriorityLow, &later)
	require.NoError(t, err)

	require.NoError(t, s.RunDeadlinePass())
	require.Len(t, n.sends, 1)
	assert.Contains(t, n.sends[0], "Submit filing")
	assert.NotContains(t, n.sends[0], "Next week thing")

	// Same day, no repeat.
	require.NoError(t, s.RunDeadlinePass())
	assert.Len(t, n.sends, 1)
}

func TestDeadlineSweepSkipsWhenNothingDue(t *testing.T) {
	at := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s, st, n := newTestScheduler(t, at)

	u, err := st.EnsureUser(1)
	require.NoError(t, err)
	u.Notifications.Enabled = true
	u.Notifications.DeadlineReminders = true
	require.NoError(t, st.SaveUser(u))

	require.NoError(t, s.RunDeadlinePass())
	assert.Empty(t, n.sends)
}

func TestComposeDigestOverflowAndTips(t *testing.T) {
	var tasks []types.Task
	for i := 0; i < 5; i++ {
		tasks = append(tasks, types.Task{
			Title:    "Urgent thing",
			Status:   types.StatusPending,
			Priority: types.PriorityUrgent,
		})
	}
	text := ComposeDigest(tasks, nil)
	assert.Contains(t, text, "...and 2 more")
	assert.Contains(t, text, "Pomodoro")

	empty := ComposeDigest(nil, nil)
	assert.Contains(t, empty, "plan new goals")
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	at := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s, _, _ := newTestScheduler(t, at)
	s.config.DigestTick = 10 * time.Millisecond
	s.config.SweepInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

// flakyNotifier fails its first N sends, then delivers.
type flakyNotifier struct {
	fakeNotifier
	failures int
}

func (f *flakyNotifier) Send(userID int64, text string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("transport down")
	}
	return f.fakeNotifier.Send(userID, text)
}

func TestDigestRetriesAfterFailedSend(t *testing.T) {
	at := time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC)
	s, st, _ := newTestScheduler(t, at)
	enableDigest(t, st, 1, "09:00", "UTC")

	n := &flakyNotifier{failures: 1}
	s.notifier = n

	// First pass fails to deliver; the marker must be released.
	require.NoError(t, s.RunDigestPass())
	assert.Empty(t, n.sends)

	// Next tick on the same day delivers, and only once.
	require.NoError(t, s.RunDigestPass())
	require.NoError(t, s.RunDigestPass())
	assert.Len(t, n.sends, 1)
}
