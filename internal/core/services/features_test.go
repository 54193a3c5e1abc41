package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name: "run-lifecycle",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			w := &lifecycleWorld{t: t}
			w.register(sc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

// lifecycleWorld drives the services the way the worker does, against
// the in-memory harness.
type lifecycleWorld struct {
	t *testing.T
	h *harness

	firstRun *domain.RunState
	report   *domain.StatusReport
}

func (w *lifecycleWorld) register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.h = newHarness(w.t)
		w.firstRun = nil
		w.report = nil
		return ctx, nil
	})

	sc.Step(`^both registries publish their first archives$`, w.firstArchives)
	sc.Step(`^a completed run$`, w.completedRun)
	sc.Step(`^the clock advances by (\d+) hours$`, w.advanceClock)
	sc.Step(`^the "(k|j)" registry publishes an archive adding postal code "(\d{7})"$`, w.publishArchive)
	sc.Step(`^the sources are synced$`, w.syncSources)
	sc.Step(`^the queued tasks are processed$`, w.processQueue)
	sc.Step(`^the status report runs$`, w.runReport)

	sc.Step(`^a "([a-z_]+)" task is queued$`, w.taskQueued)
	sc.Step(`^no task is queued$`, w.noTaskQueued)
	sc.Step(`^all shards are published$`, w.allShardsPublished)
	sc.Step(`^shard "([^"]+)" lists postal code "(\d{7})"$`, w.shardLists)
	sc.Step(`^"([^"]+)" is public$`, w.isPublic)
	sc.Step(`^the report status is "(SUCCESS|ERROR)"$`, w.reportStatus)
	sc.Step(`^no report is written$`, w.noReport)
	sc.Step(`^the previous run is archived to history$`, w.archivedToHistory)
	sc.Step(`^the run state has no report yet$`, w.notReported)
}

func (w *lifecycleWorld) firstArchives() error {
	// newHarness serves the first archives
	return nil
}

func (w *lifecycleWorld) completedRun(ctx context.Context) error {
	if err := w.syncSources(ctx); err != nil {
		return err
	}
	if err := w.processQueue(ctx); err != nil {
		return err
	}
	state, err := w.state(ctx)
	if err != nil {
		return err
	}
	w.firstRun = state
	return w.allShardsPublished(ctx)
}

func (w *lifecycleWorld) advanceClock(hours int) error {
	w.h.clock.Advance(time.Duration(hours) * time.Hour)
	return nil
}

func (w *lifecycleWorld) publishArchive(source, postalCode string) error {
	if domain.SourceType(source) != domain.SourceTypeK {
		return godog.ErrPending
	}
	extra := kRow("13101", postalCode, "ﾄｳｷｮｳﾄ", "ﾁﾖﾀﾞｸ", "ﾋﾄﾂﾊﾞｼ", "東京都", "千代田区", "一ツ橋")
	w.h.fetcher.SetBody(kPageURL, []byte("k-page-v2"))
	w.h.fetcher.SetBody(kArchiveURL, kArchive(w.t, extra))
	return nil
}

func (w *lifecycleWorld) syncSources(ctx context.Context) error {
	_, err := w.h.sources.Sync(ctx)
	return err
}

// processQueue drains the queue, dispatching each task to its service.
func (w *lifecycleWorld) processQueue(ctx context.Context) error {
	for {
		task, err := w.h.queue.DequeueWithTimeout(ctx, 0)
		if err != nil {
			return err
		}
		if task == nil {
			return nil
		}
		if err := w.dispatch(ctx, task); err != nil {
			return fmt.Errorf("%s task %s: %w", task.Type, task.ID, err)
		}
		if err := w.h.queue.Ack(ctx, task.ID); err != nil {
			return err
		}
	}
}

func (w *lifecycleWorld) dispatch(ctx context.Context, task *domain.Task) error {
	switch task.Type {
	case domain.TaskTypeSyncSources:
		_, err := w.h.sources.Sync(ctx)
		return err
	case domain.TaskTypeParseSources:
		var payload domain.ParsePayload
		if err := task.DecodePayload(&payload); err != nil {
			return err
		}
		return w.h.pipeline.Run(ctx, payload)
	case domain.TaskTypePublishShard:
		var payload domain.ShardPayload
		if err := task.DecodePayload(&payload); err != nil {
			return err
		}
		return w.h.publisher.Publish(ctx, payload)
	case domain.TaskTypeReportStatus:
		_, err := w.h.reporter.Report(ctx)
		return err
	}
	return fmt.Errorf("unknown task type %q", task.Type)
}

func (w *lifecycleWorld) runReport(ctx context.Context) error {
	report, err := w.h.reporter.Report(ctx)
	w.report = report
	return err
}

func (w *lifecycleWorld) taskQueued(taskType string) error {
	if n := len(w.h.queue.EnqueuedOfType(domain.TaskType(taskType))); n != 1 {
		return fmt.Errorf("expected one %s task, got %d", taskType, n)
	}
	return nil
}

func (w *lifecycleWorld) noTaskQueued() error {
	if n := w.h.queue.PendingCount(); n != 0 {
		return fmt.Errorf("expected empty queue, got %d pending", n)
	}
	return nil
}

func (w *lifecycleWorld) allShardsPublished(ctx context.Context) error {
	state, err := w.state(ctx)
	if err != nil {
		return err
	}
	if state.MergedAt == nil {
		return fmt.Errorf("run not merged")
	}
	for _, prefix := range domain.ShardPrefixes() {
		if !state.ShardGenerated(prefix) {
			return fmt.Errorf("shard %s not generated", prefix)
		}
	}
	return nil
}

func (w *lifecycleWorld) shardLists(ctx context.Context, path, postalCode string) error {
	data, err := w.h.blobs.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var shard map[string]domain.MergedEntry
	if err := json.Unmarshal(data, &shard); err != nil {
		return err
	}
	if _, ok := shard[postalCode[3:]]; !ok {
		return fmt.Errorf("%s has no entry for %s", path, postalCode)
	}
	if !w.h.blobs.IsPublic(path) {
		return fmt.Errorf("%s is not public", path)
	}
	return nil
}

func (w *lifecycleWorld) isPublic(path string) error {
	if !w.h.blobs.IsPublic(path) {
		return fmt.Errorf("%s is not public", path)
	}
	return nil
}

func (w *lifecycleWorld) reportStatus(status string) error {
	if w.report == nil {
		return fmt.Errorf("no report written")
	}
	if !strings.HasSuffix(w.report.Message.Subject, "status: "+status) {
		return fmt.Errorf("unexpected subject %q", w.report.Message.Subject)
	}
	return nil
}

func (w *lifecycleWorld) noReport() error {
	if w.report != nil {
		return fmt.Errorf("expected no report, got %q", w.report.Message.Subject)
	}
	return nil
}

func (w *lifecycleWorld) archivedToHistory(ctx context.Context) error {
	if w.firstRun == nil {
		return fmt.Errorf("no completed run recorded")
	}
	raw, err := w.h.docs.Get(ctx, domain.CollectionSources, w.firstRun.HistoryID())
	if err != nil {
		return fmt.Errorf("history %s: %w", w.firstRun.HistoryID(), err)
	}
	var archived domain.RunState
	if err := json.Unmarshal(raw, &archived); err != nil {
		return err
	}
	if !archived.SameSources(w.firstRun.K.ID, w.firstRun.J.ID) {
		return fmt.Errorf("history holds sources %s/%s", archived.K.ID, archived.J.ID)
	}
	current, err := w.state(ctx)
	if err != nil {
		return err
	}
	if current.K.ID == w.firstRun.K.ID {
		return fmt.Errorf("k source id did not change")
	}
	if current.J.ID != w.firstRun.J.ID {
		return fmt.Errorf("j source id changed")
	}
	return nil
}

func (w *lifecycleWorld) notReported(ctx context.Context) error {
	state, err := w.state(ctx)
	if err != nil {
		return err
	}
	if state.ReportedAt != nil {
		return fmt.Errorf("run already reported")
	}
	return nil
}

func (w *lifecycleWorld) state(ctx context.Context) (*domain.RunState, error) {
	raw, err := w.h.docs.Get(ctx, domain.CollectionSources, domain.RunStateID)
	if err != nil {
		return nil, err
	}
	state := &domain.RunState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, err
	}
	return state, nil
}
