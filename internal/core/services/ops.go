package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
	"github.com/custodia-labs/zipsync/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.OpsService = (*OpsService)(nil)

// OpsService answers operator requests against the run state and queue.
type OpsService struct {
	docs   driven.DocumentStore
	queue  driven.TaskQueue
	lock   driven.DistributedLock
	logger *slog.Logger
}

// OpsServiceConfig holds dependencies for OpsService.
type OpsServiceConfig struct {
	Docs      driven.DocumentStore
	TaskQueue driven.TaskQueue

	// Lock is optional; when set it is part of the readiness check
	Lock   driven.DistributedLock
	Logger *slog.Logger
}

// NewOpsService creates a new OpsService.
func NewOpsService(cfg OpsServiceConfig) *OpsService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpsService{
		docs:   cfg.Docs,
		queue:  cfg.TaskQueue,
		lock:   cfg.Lock,
		logger: logger,
	}
}

func (s *OpsService) CurrentRun(ctx context.Context) (*domain.RunState, error) {
	return requireRunState(ctx, s.docs)
}

// TriggerTask enqueues a source sync or a status report. Parse and shard
// tasks carry run-specific payloads and are only created by the pipeline.
func (s *OpsService) TriggerTask(ctx context.Context, taskType domain.TaskType) (*domain.Task, error) {
	switch taskType {
	case domain.TaskTypeSyncSources, domain.TaskTypeReportStatus:
	default:
		return nil, fmt.Errorf("%w: task type %q cannot be triggered", domain.ErrInvalidInput, taskType)
	}

	task := domain.NewTask(taskType, nil)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	s.logger.Info("task triggered", "task_type", taskType, "task_id", task.ID)
	return task, nil
}

func (s *OpsService) QueueStats(ctx context.Context) (*driven.QueueStats, error) {
	return s.queue.Stats(ctx)
}

func (s *OpsService) Ready(ctx context.Context) error {
	if err := s.docs.Ping(ctx); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	if err := s.queue.Ping(ctx); err != nil {
		return fmt.Errorf("task queue: %w", err)
	}
	if s.lock != nil {
		if err := s.lock.Ping(ctx); err != nil {
			return fmt.Errorf("lock: %w", err)
		}
	}
	return nil
}
