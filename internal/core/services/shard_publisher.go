package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
	"github.com/custodia-labs/zipsync/internal/export"
	"github.com/custodia-labs/zipsync/internal/merge"
	"github.com/custodia-labs/zipsync/internal/metrics"
)

// ShardPublisher publishes the entries of one postal-code prefix.
type ShardPublisher struct {
	blobs   driven.BlobStore
	docs    driven.DocumentStore
	merger  *merge.Merger
	work    workArea
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// ShardPublisherConfig holds dependencies for ShardPublisher.
type ShardPublisherConfig struct {
	Blobs   driven.BlobStore
	Docs    driven.DocumentStore
	Metrics *metrics.Collector
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewShardPublisher creates a new shard publisher.
func NewShardPublisher(cfg ShardPublisherConfig) *ShardPublisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ShardPublisher{
		blobs:   cfg.Blobs,
		docs:    cfg.Docs,
		merger:  merge.NewMerger(logger),
		work:    workArea{blobs: cfg.Blobs},
		metrics: cfg.Metrics,
		logger:  logger,
		now:     now,
	}
}

// Publish re-derives the merged entries of payload.Prefix from the latest
// parsed sources and writes one public file per 3-digit group. Returns
// immediately when the payload is not the current run or the prefix
// milestone is already set.
func (s *ShardPublisher) Publish(ctx context.Context, payload domain.ShardPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	state, err := requireRunState(ctx, s.docs)
	if err != nil {
		return err
	}
	if !state.SameSources(payload.K.ID, payload.J.ID) {
		s.logger.Warn("shard task belongs to a previous run, skipping",
			"prefix", payload.Prefix, "k", payload.K.ID, "j", payload.J.ID)
		return nil
	}
	if state.ShardGenerated(payload.Prefix) {
		s.logger.Info("shard already generated", "prefix", payload.Prefix)
		return nil
	}

	k, err := s.work.latest(ctx, domain.SourceTypeK)
	if err != nil {
		return err
	}
	j, err := s.work.latest(ctx, domain.SourceTypeJ)
	if err != nil {
		return err
	}

	ds := s.merger.MergePrefix(k, j, payload.Prefix)
	groups := merge.GroupShards(ds.Entries)

	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)

	for _, g := range names {
		data, err := export.Shard(groups[g])
		if err != nil {
			return fmt.Errorf("encode shard %s: %w", g, err)
		}
		path := export.ShardPath(g)
		if err := s.blobs.Put(ctx, path, data); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
		if err := s.blobs.MakePublic(ctx, path); err != nil {
			return fmt.Errorf("publish %s: %w", path, err)
		}
	}

	field := domain.ShardMilestoneField(payload.Prefix)
	if err := stampRunState(ctx, s.docs, map[string]any{field: s.now().UTC()}); err != nil {
		return err
	}
	s.metrics.ShardPublished(payload.Prefix)

	s.logger.Info("generated shard", "path", "simple/"+payload.Prefix+"??.json", "files", len(names), "entries", len(ds.Entries))
	return nil
}
