package domain

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" || id2 == "" {
		t.Error("expected non-empty ID")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	if len(id1) != 36 {
		t.Errorf("expected ID length 36, got %d", len(id1))
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeSyncSources, nil)

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeSyncSources {
		t.Errorf("expected type %s, got %s", TaskTypeSyncSources, task.Type)
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Attempts != 0 {
		t.Errorf("expected attempts 0, got %d", task.Attempts)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if task.CreatedAt.IsZero() || task.ScheduledFor.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestTaskType_Valid(t *testing.T) {
	for _, tt := range []TaskType{TaskTypeSyncSources, TaskTypeParseSources, TaskTypePublishShard, TaskTypeReportStatus} {
		if !tt.Valid() {
			t.Errorf("expected %s to be valid", tt)
		}
	}
	if TaskType("sync_all").Valid() {
		t.Error("expected unknown type to be invalid")
	}
}

func TestNewParseSourcesTask(t *testing.T) {
	task, err := NewParseSourcesTask(ParsePayload{
		K: SourceRef{ID: "k20240101000000000"},
		J: SourceRef{ID: "j20240101000000000"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Type != TaskTypeParseSources {
		t.Errorf("expected type %s, got %s", TaskTypeParseSources, task.Type)
	}

	var p ParsePayload
	if err := task.DecodePayload(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.K.ID != "k20240101000000000" || p.J.ID != "j20240101000000000" {
		t.Errorf("unexpected payload %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("expected valid payload, got %v", err)
	}
}

func TestTask_DecodePayload_Empty(t *testing.T) {
	task := NewTask(TaskTypeParseSources, nil)
	var p ParsePayload
	if err := task.DecodePayload(&p); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestShardPayload_Validate(t *testing.T) {
	refs := func(prefix string) ShardPayload {
		return ShardPayload{
			K:      SourceRef{ID: "k1"},
			J:      SourceRef{ID: "j1"},
			Prefix: prefix,
		}
	}

	tests := []struct {
		name    string
		payload ShardPayload
		valid   bool
	}{
		{"digit zero", refs("0"), true},
		{"digit nine", refs("9"), true},
		{"empty prefix", refs(""), false},
		{"two digits", refs("10"), false},
		{"letter", refs("a"), false},
		{"missing k", ShardPayload{J: SourceRef{ID: "j1"}, Prefix: "1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestTask_CanRetry(t *testing.T) {
	tests := []struct {
		name        string
		attempts    int
		maxAttempts int
		expected    bool
	}{
		{"no attempts yet", 0, 3, true},
		{"two attempts", 2, 3, true},
		{"max attempts reached", 3, 3, false},
		{"over max attempts", 4, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Attempts: tt.attempts, MaxAttempts: tt.maxAttempts}
			if got := task.CanRetry(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTask_IsReady(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name         string
		status       TaskStatus
		scheduledFor time.Time
		expected     bool
	}{
		{"pending and past scheduled", TaskStatusPending, past, true},
		{"pending and future scheduled", TaskStatusPending, future, false},
		{"processing", TaskStatusProcessing, past, false},
		{"completed", TaskStatusCompleted, past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Status: tt.status, ScheduledFor: tt.scheduledFor}
			if got := task.IsReady(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewTask(TaskTypeReportStatus, nil)

	task.MarkProcessing()
	if task.Status != TaskStatusProcessing || task.StartedAt == nil || task.Attempts != 1 {
		t.Errorf("unexpected processing state: %+v", task)
	}

	task.MarkFailed("boom")
	if task.Status != TaskStatusFailed || task.Error != "boom" {
		t.Errorf("unexpected failed state: %+v", task)
	}

	task.MarkCompleted()
	if task.Status != TaskStatusCompleted || task.CompletedAt == nil || task.Error != "" {
		t.Errorf("unexpected completed state: %+v", task)
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{10, 5 * time.Minute},
		{40, 5 * time.Minute},
	}

	for _, tt := range tests {
		if got := RetryBackoff(tt.attempts); got != tt.expected {
			t.Errorf("attempts=%d: expected %v, got %v", tt.attempts, tt.expected, got)
		}
	}
}

func TestTask_Retry(t *testing.T) {
	task := NewTask(TaskTypeSyncSources, nil)
	task.Attempts = 1
	before := time.Now()

	task.Retry("retry error")

	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Error != "retry error" {
		t.Errorf("expected error to be recorded, got %s", task.Error)
	}
	if task.ScheduledFor.Before(before.Add(2 * time.Second)) {
		t.Errorf("expected ScheduledFor at least 2s out, got %v", task.ScheduledFor.Sub(before))
	}
}

func TestScheduledTask_IsDue(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		enabled  bool
		nextRun  time.Time
		expected bool
	}{
		{"enabled and past", true, now.Add(-time.Hour), true},
		{"enabled and future", true, now.Add(time.Hour), false},
		{"disabled and past", false, now.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduled := &ScheduledTask{Enabled: tt.enabled, NextRun: tt.nextRun}
			if got := scheduled.IsDue(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestScheduledTask_UpdateNextRun(t *testing.T) {
	scheduled := &ScheduledTask{Interval: 30 * time.Minute}

	scheduled.UpdateNextRun()

	if scheduled.LastRun == nil {
		t.Fatal("expected LastRun to be set")
	}
	if expected := scheduled.LastRun.Add(30 * time.Minute); scheduled.NextRun != expected {
		t.Errorf("expected NextRun %v, got %v", expected, scheduled.NextRun)
	}
}

func TestDefaultSchedulerConfig(t *testing.T) {
	configs := DefaultSchedulerConfig(24*time.Hour, 6*time.Hour)

	if len(configs) != 2 {
		t.Fatalf("expected 2 scheduled tasks, got %d", len(configs))
	}

	byID := map[string]*ScheduledTask{}
	for _, c := range configs {
		byID[c.ID] = c
	}

	sync, ok := byID["source-sync"]
	if !ok {
		t.Fatal("expected source-sync")
	}
	if sync.Type != TaskTypeSyncSources || sync.Interval != 24*time.Hour {
		t.Errorf("unexpected source-sync config: %+v", sync)
	}

	report, ok := byID["status-report"]
	if !ok {
		t.Fatal("expected status-report")
	}
	if report.Type != TaskTypeReportStatus || report.Interval != 6*time.Hour {
		t.Errorf("unexpected status-report config: %+v", report)
	}
}
