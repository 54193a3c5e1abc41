package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven/mocks"
)

func dueTask(id string, taskType domain.TaskType) *domain.ScheduledTask {
	st := domain.NewScheduledTask(id, id, taskType, time.Hour)
	st.NextRun = time.Now().Add(-time.Minute)
	return st
}

func TestScheduler_SeedDefaults(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: mocks.NewMockTaskQueue()})
	ctx := context.Background()

	require.NoError(t, s.SeedDefaults(ctx, domain.DefaultSchedulerConfig(time.Hour, 24*time.Hour)))

	tasks, err := s.ListScheduledTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	sync, err := store.GetScheduledTask(ctx, "source-sync")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeSyncSources, sync.Type)
	firstNext := sync.NextRun

	// Seeding again keeps the schedule and picks up the new interval.
	require.NoError(t, s.SeedDefaults(ctx, domain.DefaultSchedulerConfig(2*time.Hour, 24*time.Hour)))
	sync, err = store.GetScheduledTask(ctx, "source-sync")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, sync.Interval)
	assert.True(t, firstNext.Equal(sync.NextRun))

	tasks, err = s.ListScheduledTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestScheduler_CheckAndEnqueue(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	ctx := context.Background()

	require.NoError(t, store.SaveScheduledTask(ctx, dueTask("source-sync", domain.TaskTypeSyncSources)))
	notDue := domain.NewScheduledTask("status-report", "Status Report", domain.TaskTypeReportStatus, time.Hour)
	require.NoError(t, store.SaveScheduledTask(ctx, notDue))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue})
	s.checkAndEnqueue(ctx)

	require.Len(t, queue.Enqueued, 1)
	assert.Equal(t, domain.TaskTypeSyncSources, queue.Enqueued[0].Type)

	st, err := store.GetScheduledTask(ctx, "source-sync")
	require.NoError(t, err)
	assert.NotNil(t, st.LastRun)
	assert.False(t, st.IsDue())
}

func TestScheduler_EnqueueFailureRecorded(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	queue.EnqueueFn = func(*domain.Task) error { return errors.New("queue down") }
	ctx := context.Background()
	require.NoError(t, store.SaveScheduledTask(ctx, dueTask("source-sync", domain.TaskTypeSyncSources)))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue})
	s.checkAndEnqueue(ctx)

	st, err := store.GetScheduledTask(ctx, "source-sync")
	require.NoError(t, err)
	assert.Equal(t, "queue down", st.LastError)
}

func TestScheduler_LockHeldElsewhere(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld(schedulerLockName, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.SaveScheduledTask(ctx, dueTask("source-sync", domain.TaskTypeSyncSources)))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Lock: lock})
	s.checkAndEnqueue(ctx)

	assert.Empty(t, queue.Enqueued)
}

func TestScheduler_LockErrorRequired(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(string, time.Duration) (bool, error) { return false, errors.New("redis down") }
	ctx := context.Background()
	require.NoError(t, store.SaveScheduledTask(ctx, dueTask("source-sync", domain.TaskTypeSyncSources)))

	required := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Lock: lock, LockRequired: true})
	required.checkAndEnqueue(ctx)
	assert.Empty(t, queue.Enqueued)

	lenient := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Lock: lock})
	lenient.checkAndEnqueue(ctx)
	assert.Len(t, queue.Enqueued, 1)
}

func TestScheduler_ReleasesLock(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	lock := mocks.NewMockDistributedLock()
	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: mocks.NewMockTaskQueue(), Lock: lock})

	s.checkAndEnqueue(context.Background())

	assert.False(t, lock.IsHeld(schedulerLockName))
}

func TestScheduler_TriggerNow(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	ctx := context.Background()
	require.NoError(t, store.SaveScheduledTask(ctx,
		domain.NewScheduledTask("status-report", "Status Report", domain.TaskTypeReportStatus, time.Hour)))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue})

	task, err := s.TriggerNow(ctx, "status-report")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeReportStatus, task.Type)
	assert.Len(t, queue.Enqueued, 1)

	_, err = s.TriggerNow(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduler_StartStop(t *testing.T) {
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	ctx := context.Background()
	require.NoError(t, store.SaveScheduledTask(ctx, dueTask("source-sync", domain.TaskTypeSyncSources)))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, PollInterval: time.Hour})
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return queue.PendingCount() == 1 }, time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}
