package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexeyavdey/gptbot/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndListTasks(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateTask(1, "Buy milk", "from the corner store", types.PriorityLow, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	tasks, err := s.ListTasks(1, "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, types.StatusPending, tasks[0].Status)
	assert.Equal(t, types.PriorityLow, tasks[0].Priority)
	assert.Nil(t, tasks[0].CompletedAt)
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateTask(1, "", "", types.PriorityLow, nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = s.CreateTask(1, "ok", "", types.TaskPriority("asap"), nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestListTasksStatusFilter(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.CreateTask(1, "first", "", types.PriorityMedium, nil)
	require.NoError(t, err)
	_, err = s.CreateTask(1, "second", "", types.PriorityMedium, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateTaskStatus(id1, 1, types.StatusCompleted))

	pending, err := s.ListTasks(1, types.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "second", pending[0].Title)

	completed, err := s.ListTasks(1, types.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
}

func TestUpdateStatusSetsCompletedAt(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateTask(1, "finish report", "", types.PriorityHigh, nil)
	require.NoError(t, err)

	require.NoError(t, s.UpdateTaskStatus(id, 1, types.StatusCompleted))
	task, err := s.GetTask(id, 1)
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt, "completed_at must be set on completion")

	// Reopening the task clears completed_at: the invariant is iff.
	require.NoError(t, s.UpdateTaskStatus(id, 1, types.StatusInProgress))
	task, err = s.GetTask(id, 1)
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)
}

func TestOwnerScoping(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateTask(1, "private", "", types.PriorityMedium, nil)
	require.NoError(t, err)

	// Another owner can neither mutate nor delete.
	err = s.UpdateTaskStatus(id, 2, types.StatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.UpdateTaskPriority(id, 2, types.PriorityUrgent)
	assert.ErrorIs(t, err, ErrNotFound)
	deleted, err := s.DeleteTask(id, 2)
	require.NoError(t, err)
	assert.False(t, deleted)

	// And nothing changed for the real owner.
	task, err := s.GetTask(id, 1)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, task.Status)
	assert.Equal(t, types.PriorityMedium, task.Priority)
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateTask(1, "temporary", "", types.PriorityLow, nil)
	require.NoError(t, err)

	deleted, err := s.DeleteTask(id, 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteTask(id, 1)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete must be a no-op")
}

func TestAnalyticsEmpty(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Analytics(42)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Total)
	assert.Equal(t, float64(0), a.CompletionRate, "zero tasks must yield rate 0, not NaN")
}

func TestAnalyticsCounts(t *testing.T) {
	s := newTestStore(t)

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		id, err := s.CreateTask(1, fmt.Sprintf("task %d", i), "", types.PriorityMedium, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.UpdateTaskStatus(ids[0], 1, types.StatusCompleted))
	require.NoError(t, s.UpdateTaskStatus(ids[1], 1, types.StatusInProgress))
	require.NoError(t, s.UpdateTaskPriority(ids[2], 1, types.PriorityUrgent))

	a, err := s.Analytics(1)
	require.NoError(t, err)
	assert.Equal(t, 4, a.Total)
	assert.Equal(t, 1, a.Completed)
	assert.Equal(t, 1, a.InProgress)
	assert.Equal(t, 2, a.Pending)
	assert.Equal(t, 25.0, a.CompletionRate)
	assert.Equal(t, 3, a.PriorityDistribution[types.PriorityMedium])
	assert.Equal(t, 1, a.PriorityDistribution[types.PriorityUrgent])
	assert.GreaterOrEqual(t, a.CompletionRate, 0.0)
	assert.LessOrEqual(t, a.CompletionRate, 100.0)
}

func TestCreateThenDeleteLeavesRemainder(t *testing.T) {
	s := newTestStore(t)

	const n, m = 7, 3
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.CreateTask(1, fmt.Sprintf("task %d", i), "", types.PriorityLow, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i := 0; i < m; i++ {
		deleted, err := s.DeleteTask(ids[i], 1)
		require.NoError(t, err)
		require.True(t, deleted)
	}

	tasks, err := s.ListTasks(1, "")
	require.NoError(t, err)
	assert.Len(t, tasks, n-m)

	a, err := s.Analytics(1)
	require.NoError(t, err)
	assert.Equal(t, n-m, a.Total)
}

func TestTasksDueWithin(t *testing.T) {
	s := newTestStore(t)

	soon := time.Now().Add(2 * time.Hour)
	later := time.Now().Add(48 * time.Hour)
	closest := time.Now().Add(30 * time.Minute)

	_, err := s.CreateTask(1, "due soon", "", types.PriorityHigh, &soon)
	require.NoError(t, err)
	_, err = s.CreateTask(1, "due later", "", types.PriorityHigh, &later)
	require.NoError(t, err)
	_, err = s.CreateTask(1, "due closest", "", types.PriorityHigh, &closest)
	require.NoError(t, err)
	doneID, err := s.CreateTask(1, "done and due", "", types.PriorityHigh, &closest)
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(doneID, 1, types.StatusCompleted))

	due, err := s.TasksDueWithin(1, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 2, "completed and far-future tasks are excluded")
	assert.Equal(t, "due closest", due[0].Title, "soonest deadline first")
	assert.Equal(t, "due soon", due[1].Title)
}

func TestCompletedSince(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateTask(1, "wrapped up", "", types.PriorityLow, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(id, 1, types.StatusCompleted))

	recent, err := s.CompletedSince(1, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	none, err := s.CompletedSince(1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}
