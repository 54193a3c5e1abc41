package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeSyncSources checks both registries for new archives
	TaskTypeSyncSources TaskType = "sync_sources"
	// TaskTypeParseSources parses changed archives and merges both sources
	TaskTypeParseSources TaskType = "parse_sources"
	// TaskTypePublishShard publishes one postal-code prefix shard
	TaskTypePublishShard TaskType = "publish_shard"
	// TaskTypeReportStatus composes the run status report
	TaskTypeReportStatus TaskType = "report_status"
)

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeSyncSources, TaskTypeParseSources, TaskTypePublishShard, TaskTypeReportStatus:
		return true
	}
	return false
}

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// Payload contains task-specific data.
	// For parse_sources: ParsePayload
	// For publish_shard: ShardPayload
	// For sync_sources and report_status: empty
	Payload json.RawMessage `json:"payload,omitempty"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload json.RawMessage) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewParseSourcesTask creates a task to parse and merge the given sources
func NewParseSourcesTask(p ParsePayload) (*Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return NewTask(TaskTypeParseSources, data), nil
}

// NewPublishShardTask creates a task to publish one prefix shard
func NewPublishShardTask(p ShardPayload) (*Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return NewTask(TaskTypePublishShard, data), nil
}

// DecodePayload unmarshals the task payload into v.
func (t *Task) DecodePayload(v any) error {
	if len(t.Payload) == 0 {
		return ErrInvalidInput
	}
	return json.Unmarshal(t.Payload, v)
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && time.Now().After(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err
	t.ScheduledFor = now.Add(RetryBackoff(t.Attempts))
}

// RetryBackoff returns the delay before the next attempt: 1s, 2s, 4s, ...
// capped at 5 minutes.
func RetryBackoff(attempts int) time.Duration {
	if attempts > 16 {
		return 5 * time.Minute
	}
	backoff := time.Duration(1<<attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	return backoff
}

// ScheduledTask represents a recurring task configuration
type ScheduledTask struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     TaskType      `json:"type"`
	Interval time.Duration `json:"interval"`
	Enabled  bool          `json:"enabled"`

	// LastRun is when the task was last triggered
	LastRun *time.Time `json:"last_run,omitempty"`

	// NextRun is when the task should next be triggered
	NextRun time.Time `json:"next_run"`

	// LastError contains the last error if the scheduled task failed
	LastError string `json:"last_error,omitempty"`
}

// NewScheduledTask creates a new scheduled task
func NewScheduledTask(id, name string, taskType TaskType, interval time.Duration) *ScheduledTask {
	return &ScheduledTask{
		ID:       id,
		Name:     name,
		Type:     taskType,
		Interval: interval,
		Enabled:  true,
		NextRun:  time.Now().Add(interval),
	}
}

// IsDue returns true if the scheduled task should be triggered
func (s *ScheduledTask) IsDue() bool {
	return s.Enabled && time.Now().After(s.NextRun)
}

// UpdateNextRun calculates the next run time after execution
func (s *ScheduledTask) UpdateNextRun() {
	now := time.Now()
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
}

// DefaultSchedulerConfig returns the default scheduled tasks: a registry
// check and a status report, each on its own interval.
func DefaultSchedulerConfig(syncInterval, reportInterval time.Duration) []*ScheduledTask {
	return []*ScheduledTask{
		NewScheduledTask("source-sync", "Source Sync", TaskTypeSyncSources, syncInterval),
		NewScheduledTask("status-report", "Status Report", TaskTypeReportStatus, reportInterval),
	}
}
