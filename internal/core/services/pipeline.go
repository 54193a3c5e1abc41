package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
	"github.com/custodia-labs/zipsync/internal/export"
	"github.com/custodia-labs/zipsync/internal/merge"
	"github.com/custodia-labs/zipsync/internal/metrics"
	"github.com/custodia-labs/zipsync/internal/parser"
)

// historyArtifacts are the consolidated artifacts copied to history/.
var historyArtifacts = []string{
	export.NameSimple + "_utf8.csv",
	export.NameSimple + "_sjis.csv",
	export.NameSimple + ".json",
	export.NameSimple + ".zip",
}

// SourcePipeline parses changed archives, merges both registries and
// publishes the consolidated artifacts.
type SourcePipeline struct {
	blobs     driven.BlobStore
	docs      driven.DocumentStore
	taskQueue driven.TaskQueue
	parser    *parser.Parser
	merger    *merge.Merger
	work      workArea
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// SourcePipelineConfig holds dependencies for SourcePipeline.
type SourcePipelineConfig struct {
	Blobs     driven.BlobStore
	Docs      driven.DocumentStore
	TaskQueue driven.TaskQueue
	Parser    *parser.Parser // Optional: defaults to parser.New with default rules
	Metrics   *metrics.Collector
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewSourcePipeline creates a new source pipeline.
func NewSourcePipeline(cfg SourcePipelineConfig) *SourcePipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := cfg.Parser
	if p == nil {
		p = parser.New(parser.Config{Logger: logger})
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SourcePipeline{
		blobs:     cfg.Blobs,
		docs:      cfg.Docs,
		taskQueue: cfg.TaskQueue,
		parser:    p,
		merger:    merge.NewMerger(logger),
		work:      workArea{blobs: cfg.Blobs},
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       now,
	}
}

// Run parses and merges the sources of payload and dispatches the
// resulting shard work.
func (p *SourcePipeline) Run(ctx context.Context, payload domain.ParsePayload) error {
	work, err := p.ParseAndMerge(ctx, payload)
	if err != nil {
		return err
	}
	return p.DispatchShards(ctx, work)
}

// ParseAndMerge returns one work item per shard prefix still to publish.
//
// A run already merged for the same source ids is not recomputed; only the
// shards without a milestone are returned again. A payload whose ids are no
// longer current is still merged and published but returns no work. A source already parsed
// for its id is read back from its latest pointer instead of re-parsed.
func (p *SourcePipeline) ParseAndMerge(ctx context.Context, payload domain.ParsePayload) ([]domain.ShardWork, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	state, err := requireRunState(ctx, p.docs)
	if err != nil {
		return nil, err
	}

	if state.SameSources(payload.K.ID, payload.J.ID) && state.MergedAt != nil {
		p.logger.Info("sources already merged", "k", payload.K.ID, "j", payload.J.ID)
		return pendingShards(state, payload), nil
	}

	p.logger.Info("parsing sources", "k", payload.K.ID, "j", payload.J.ID)

	parsed := make(map[domain.SourceType]*domain.ParsedSource, len(domain.SourceTypes))
	for _, t := range domain.SourceTypes {
		ps, err := p.parsedSource(ctx, state, t, payload.Ref(t))
		if err != nil {
			return nil, err
		}
		parsed[t] = ps
	}

	ds := p.merger.Merge(parsed[domain.SourceTypeK], parsed[domain.SourceTypeJ])
	p.metrics.Merged(len(ds.Entries))

	if err := p.publish(ctx, ds); err != nil {
		return nil, err
	}

	p.logger.Info("merged sources", "entries", len(ds.Entries))

	// A newer fetch has its own parse task queued; it owns the milestones.
	if !state.SameSources(payload.K.ID, payload.J.ID) {
		p.logger.Warn("run state moved on, shards not requested", "k", payload.K.ID, "j", payload.J.ID)
		return nil, nil
	}

	if err := stampRunState(ctx, p.docs, map[string]any{domain.FieldMergedAt: p.now().UTC()}); err != nil {
		return nil, err
	}

	return pendingShards(&domain.RunState{}, payload), nil
}

// DispatchShards enqueues one publish_shard task per work item.
func (p *SourcePipeline) DispatchShards(ctx context.Context, work []domain.ShardWork) error {
	if len(work) == 0 {
		return nil
	}
	tasks := make([]*domain.Task, 0, len(work))
	for _, w := range work {
		task, err := domain.NewPublishShardTask(w.Payload())
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
	}
	if err := p.taskQueue.EnqueueBatch(ctx, tasks); err != nil {
		return fmt.Errorf("enqueue publish_shard: %w", err)
	}
	p.logger.Info("requested shards", "count", len(tasks))
	return nil
}

// parsedSource parses the archive of ref, or reads its latest pointer when
// the source is already parsed.
func (p *SourcePipeline) parsedSource(ctx context.Context, state *domain.RunState, t domain.SourceType, ref domain.SourceRef) (*domain.ParsedSource, error) {
	current := state.Source(t)
	if ref.ParsedAt != nil || (current != nil && current.ID == ref.ID && current.IsParsed()) {
		ps, err := p.work.latest(ctx, t)
		if err != nil {
			return nil, err
		}
		p.logger.Info("reusing parsed source", "source_id", ref.ID)
		return ps, nil
	}

	data, err := p.blobs.Get(ctx, archivePath(ref.ID))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", archivePath(ref.ID), err)
	}
	ps, err := p.parser.ParseArchive(ctx, t, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ref.ID, err)
	}
	if err := p.work.save(ctx, t, ref.ID, ps); err != nil {
		return nil, err
	}
	p.metrics.RecordsParsed(string(t), len(ps.Records))

	if current != nil && current.ID == ref.ID {
		field := domain.SourceField(t, domain.FieldParsedAt)
		if err := stampRunState(ctx, p.docs, map[string]any{field: p.now().UTC()}); err != nil {
			return nil, err
		}
	} else {
		p.logger.Warn("run state moved on, parsedAt not stamped", "source_id", ref.ID)
	}

	p.logger.Info("parsed source", "source_id", ref.ID, "records", len(ps.Records))
	return ps, nil
}

// publish writes the codebooks, the simple dataset in every format, the
// history copies and the public update marker.
func (p *SourcePipeline) publish(ctx context.Context, ds *domain.MergedDataset) error {
	var artifacts []export.Artifact

	for _, book := range []struct {
		name  string
		codes []domain.RegionCode
	}{
		{export.NameRegions, ds.Regions},
		{export.NameSubRegions, ds.SubRegions},
	} {
		a, err := export.JSONAndCSV(book.name, book.codes, export.CodeRows(book.codes))
		if err != nil {
			return err
		}
		artifacts = append(artifacts, a...)
	}

	simple, err := export.JSONAndCSV(export.NameSimple, ds.Entries, export.EntryRows(ds.Entries))
	if err != nil {
		return err
	}
	artifacts = append(artifacts, simple...)

	zipped, err := export.EntryZip(ds.Entries)
	if err != nil {
		return fmt.Errorf("encode %s.zip: %w", export.NameSimple, err)
	}
	artifacts = append(artifacts, export.Artifact{Path: export.NameSimple + ".zip", Data: zipped})

	for _, a := range artifacts {
		if err := p.blobs.Put(ctx, a.Path, a.Data); err != nil {
			return fmt.Errorf("save %s: %w", a.Path, err)
		}
		p.logger.Debug("saved artifact", "path", a.Path, "bytes", len(a.Data))
	}

	stamp := domain.CompactTimestamp(p.now())
	for _, name := range historyArtifacts {
		if err := p.blobs.Copy(ctx, name, export.HistoryPath(stamp, name)); err != nil {
			return fmt.Errorf("copy %s to history: %w", name, err)
		}
	}

	if err := p.blobs.Put(ctx, export.NameUpdate, []byte(stamp)); err != nil {
		return fmt.Errorf("save %s: %w", export.NameUpdate, err)
	}
	if err := p.blobs.MakePublic(ctx, export.NameUpdate); err != nil {
		return fmt.Errorf("publish %s: %w", export.NameUpdate, err)
	}
	return nil
}

// pendingShards lists work for every prefix without a milestone in state.
func pendingShards(state *domain.RunState, payload domain.ParsePayload) []domain.ShardWork {
	var work []domain.ShardWork
	for _, prefix := range domain.ShardPrefixes() {
		if state.ShardGenerated(prefix) {
			continue
		}
		work = append(work, domain.ShardWork{Prefix: prefix, K: payload.K, J: payload.J})
	}
	return work
}
