package driving

import (
	"context"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
)

// OpsService backs the operations HTTP API.
type OpsService interface {
	// CurrentRun returns the live run state, or domain.ErrRunStateMissing.
	CurrentRun(ctx context.Context) (*domain.RunState, error)

	// TriggerTask enqueues a task of a type operators may start by hand.
	// Other types return domain.ErrInvalidInput.
	TriggerTask(ctx context.Context, taskType domain.TaskType) (*domain.Task, error)

	// QueueStats reports task queue depth.
	QueueStats(ctx context.Context) (*driven.QueueStats, error)

	// Ready checks every backend the pipeline depends on.
	Ready(ctx context.Context) error
}
