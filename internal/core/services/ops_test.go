package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven/mocks"
)

func newOpsService() (*OpsService, *mocks.MockDocumentStore, *mocks.MockTaskQueue, *mocks.MockDistributedLock) {
	docs := mocks.NewMockDocumentStore()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	return NewOpsService(OpsServiceConfig{Docs: docs, TaskQueue: queue, Lock: lock}), docs, queue, lock
}

func TestOpsService_CurrentRun(t *testing.T) {
	svc, docs, _, _ := newOpsService()
	ctx := context.Background()

	_, err := svc.CurrentRun(ctx)
	assert.ErrorIs(t, err, domain.ErrRunStateMissing)

	docs.Put(domain.CollectionSources, domain.RunStateID,
		[]byte(`{"k":{"id":"k20260301093000125"},"j":{"id":"j20260301093000125"},"generatedSample3At":"2026-03-01T10:00:00Z"}`))

	state, err := svc.CurrentRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k20260301093000125", state.K.ID)
	assert.True(t, state.ShardGenerated("3"))
	assert.False(t, state.ShardGenerated("4"))
}

func TestOpsService_TriggerTask(t *testing.T) {
	svc, _, queue, _ := newOpsService()
	ctx := context.Background()

	for _, tt := range []domain.TaskType{domain.TaskTypeSyncSources, domain.TaskTypeReportStatus} {
		task, err := svc.TriggerTask(ctx, tt)
		require.NoError(t, err)
		assert.Equal(t, tt, task.Type)
	}
	assert.Equal(t, 2, queue.PendingCount())

	for _, tt := range []domain.TaskType{domain.TaskTypeParseSources, domain.TaskTypePublishShard, "reindex"} {
		_, err := svc.TriggerTask(ctx, tt)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, string(tt))
	}
	assert.Equal(t, 2, queue.PendingCount())
}

func TestOpsService_TriggerTask_EnqueueError(t *testing.T) {
	svc, _, queue, _ := newOpsService()
	queue.EnqueueFn = func(*domain.Task) error { return errors.New("queue down") }

	_, err := svc.TriggerTask(context.Background(), domain.TaskTypeSyncSources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue down")
}

func TestOpsService_QueueStats(t *testing.T) {
	svc, _, queue, _ := newOpsService()
	require.NoError(t, queue.Enqueue(context.Background(), domain.NewTask(domain.TaskTypeSyncSources, nil)))

	stats, err := svc.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingCount)
}

func TestOpsService_Ready(t *testing.T) {
	svc, _, _, lock := newOpsService()
	ctx := context.Background()

	require.NoError(t, svc.Ready(ctx))

	lock.PingFn = func() error { return errors.New("redis gone") }
	err := svc.Ready(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock")

	noLock := NewOpsService(OpsServiceConfig{Docs: mocks.NewMockDocumentStore(), TaskQueue: mocks.NewMockTaskQueue()})
	assert.NoError(t, noLock.Ready(ctx))
}
