package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
	"github.com/custodia-labs/zipsync/internal/core/services"
	"github.com/custodia-labs/zipsync/internal/metrics"
)

// SourceSyncer checks the upstream registries for new archives.
type SourceSyncer interface {
	Sync(ctx context.Context) ([]domain.SourceType, error)
}

// SourceRunner parses, merges and dispatches shard work for one payload.
type SourceRunner interface {
	Run(ctx context.Context, payload domain.ParsePayload) error
}

// ShardPublisher publishes one postal-code prefix.
type ShardPublisher interface {
	Publish(ctx context.Context, payload domain.ShardPayload) error
}

// StatusReporter reports on the current run.
type StatusReporter interface {
	Report(ctx context.Context) (*domain.StatusReport, error)
}

// Worker processes tasks from the task queue.
// Each task type is handed to the service that owns it.
type Worker struct {
	taskQueue driven.TaskQueue
	sources   SourceSyncer
	pipeline  SourceRunner
	publisher ShardPublisher
	reporter  StatusReporter
	scheduler *services.Scheduler
	metrics   *metrics.Collector
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Sources        SourceSyncer
	Pipeline       SourceRunner
	Publisher      ShardPublisher
	Reporter       StatusReporter
	Scheduler      *services.Scheduler // Optional
	Metrics        *metrics.Collector  // Optional
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		sources:        cfg.Sources,
		pipeline:       cfg.Pipeline,
		publisher:      cfg.Publisher,
		reporter:       cfg.Reporter,
		scheduler:      cfg.Scheduler,
		metrics:        cfg.Metrics,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if task == nil {
			continue
		}

		w.ProcessTask(ctx, task)
	}
}

// ProcessTask runs one task and acks it, or nacks it on failure so the
// queue can retry it.
func (w *Worker) ProcessTask(ctx context.Context, task *domain.Task) {
	logger := w.logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Info("processing task")

	startTime := time.Now()
	err := w.dispatch(ctx, task)
	duration := time.Since(startTime)

	if err != nil {
		w.metrics.TaskProcessed(string(task.Type), "failed", duration)
		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)

		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	w.metrics.TaskProcessed(string(task.Type), "completed", duration)
	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

func (w *Worker) dispatch(ctx context.Context, task *domain.Task) error {
	switch task.Type {
	case domain.TaskTypeSyncSources:
		updated, err := w.sources.Sync(ctx)
		if err != nil {
			return err
		}
		if len(updated) > 0 {
			w.logger.Info("sources updated", "types", updated)
		}
		return nil

	case domain.TaskTypeParseSources:
		var payload domain.ParsePayload
		if err := task.DecodePayload(&payload); err != nil {
			return err
		}
		return w.pipeline.Run(ctx, payload)

	case domain.TaskTypePublishShard:
		var payload domain.ShardPayload
		if err := task.DecodePayload(&payload); err != nil {
			return err
		}
		return w.publisher.Publish(ctx, payload)

	case domain.TaskTypeReportStatus:
		report, err := w.reporter.Report(ctx)
		if err != nil {
			return err
		}
		if report != nil {
			w.logger.Info("status reported", "subject", report.Message.Subject, "recipients", len(report.To))
		}
		return nil

	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
